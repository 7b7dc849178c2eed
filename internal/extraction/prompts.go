package extraction

const discoveryExtractionPrompt = `Read the product discovery conversation below and pull out what the founder has said so far. Reply with a single JSON object and nothing else. Use null for anything not yet discussed and [] for empty lists.

{
  "target_user": string or null,
  "core_problem": string or null,
  "current_alternatives": [string],
  "why_now": string or null,
  "feature_wishlist": [string],
  "success_metric": string or null,
  "revenue_model": string or null,
  "constraints": string or null
}

Conversation:
---
{{conversation}}
---

JSON:`

const scopingExtractionPrompt = `Convert the MVP scope proposal below into structured data. Reply with a single JSON object and nothing else, following this shape:

{
  "mvp_features": [{"name": string, "description": string, "priority": "P0" | "P1" | "P2", "phase": 1 | 2 | 3, "rice_reach": number or null, "rice_impact": number or null, "rice_confidence": number or null, "rice_effort": number or null, "rice_score": number or null}],
  "cut_features": [{"name": string, "reason_cut": string}],
  "comparable_products": [{"name": string, "url": string or null, "relevance": string}],
  "core_user_flow": string or null,
  "scope_rationale": string or null,
  "key_screens": [string],
  "implementation_phases": [{"phase_number": 1 | 2 | 3, "name": string, "goal": string, "estimated_weeks": string, "features": [string]}]
}

Notes:
- key_screens holds 3 to 5 entries, each a screen name plus a one-line description. Use [] if the proposal names none.
- implementation_phases normally has three entries (Core MVP, Essential Additions, Growth & Polish) with a goal, a duration such as "1-2 weeks", and the feature names in that phase. Infer them from the proposal when they are not spelled out.
- Give every MVP feature its phase and whatever RICE values the proposal states; use null for the rest.

Proposal:
---
{{proposal}}
---

JSON:`

const reviewClassificationPrompt = `A product manager showed the founder a summary of the discovery conversation and asked whether it is accurate and ready to go to scoping.

Decide whether the founder's reply confirms the summary ("yes", "looks right", "go ahead", "ok") or asks for a change ("actually...", "can you change...", "you missed...").

Answer with one word: CONFIRM or REVISE.

Founder's reply:
---
{{reply}}
---

One word:`

const intentClassificationPrompt = `A product manager proposed an MVP scope. Classify the founder's reply with one word:
- AGREE: accepts the scope ("sounds good", "ok", "let's do it", "that works")
- PUSHBACK: disagrees or wants something added, kept or changed ("I need X", "don't cut Y", "what about Z")
- QUESTION: asks for clarification without agreeing or disagreeing

Founder's reply:
---
{{reply}}
---

One word:`

package specwriter

// Template is the outline every product spec follows. Placeholders are
// written as {name}.
const Template = `# Product Spec: {product_name}

## Problem Statement
{problem_statement}

## Target User Persona
{target_user_persona}

## Comparable Products
{comparable_products}

## Implementation Plan

### Phase 1: {phase_1_name} ({phase_1_weeks})
**Goal:** {phase_1_goal}

**Features:**
{phase_1_features}

**Core User Flow:**
{phase_1_flow}

**Key Screens:**
{phase_1_screens}

### Phase 2: {phase_2_name} ({phase_2_weeks})
**Goal:** {phase_2_goal}

**Features:**
{phase_2_features}

**Additional Screens:**
{phase_2_screens}

### Phase 3: {phase_3_name} ({phase_3_weeks})
**Goal:** {phase_3_goal}

**Features:**
{phase_3_features}

## Cut Features (with rationale)
{cut_features}

## RICE Scoring Summary
{rice_summary}

## Open Questions & Risks
{open_questions_risks}

## Technical Considerations
{technical_considerations}
`

const systemPrompt = `You write product specs. Given the notes from a discovery interview and an
agreed MVP scope, produce one clean Markdown document. You are not having a
conversation: output the document and nothing else.

Rules:
- Follow the template exactly, keeping its headings and their order.
- Organise the plan by implementation phase. Each phase must be buildable on
  its own, so a developer or code generation tool can ship Phase 1 without
  reading Phase 2.
- Use only what was discussed in discovery and scoping. Do not invent users,
  features or numbers.
- When a section cannot be filled from the notes, write "TBD — needs further
  discovery" there.
- Write plainly for developers. No commentary before or after the document.
- The problem statement, persona, features, core flow, key screens and risks
  must match what was agreed.
- Include the RICE scoring summary whenever the scope carries RICE data.`

const writeRequest = "Generate the full product spec following the template. Context:\n\n%s\n\nOutput only the Markdown document, no commentary."

const doneLine = "Here's your product spec. You can download it below."

// TBD fills any section the conversation did not cover.
const TBD = "TBD — needs further discovery."

package chunkfile

// Instructions is the fixed proofreading brief embedded in every chunk file.
// It does not depend on page content.
const Instructions = `Proofread the following Arabic text:
- Correct spelling, grammar, punctuation, hamza, and spacing.
- Preserve the exact meaning and tone.
- Preserve headings, bullet points, numbering, and formatting as much as possible.
- Do NOT summarize, shorten, or remove content.
- Do NOT add explanations inside the text.
- Return:
  1. The fully corrected text only.
  2. A short bullet list of recurring issues you fixed (in Arabic).`

// Section headings, in file order.
const (
	HeadingMeta         = "CHUNK_META"
	HeadingInstructions = "INSTRUCTIONS_FOR_CHATGPT"
	HeadingText         = "TEXT"
)

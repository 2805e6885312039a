package decompose

import "fmt"

// decompositionPrompt asks the reasoner for 3-5 sub-problems as pure JSON.
const decompositionPrompt = `Break this problem into 3-5 independent sub-problems that together answer it.

Problem:
%s

Return ONLY a JSON array with this exact structure (no other text):
[
  {
    "title": "Short sub-problem title",
    "description": "What this sub-problem must establish or answer",
    "requires": ["capability needed to execute, if any"]
  }
]

Guidelines:
- Each sub-problem should be answerable on its own given the problem statement
- Prefer sub-problems that can be worked on in parallel
- Use "requires" only for concrete work needing a tool or external capability
- 3 to 5 sub-problems, no more`

// BuildPrompt renders the decomposition prompt for a problem statement.
func BuildPrompt(problem string) string {
	return fmt.Sprintf(decompositionPrompt, problem)
}

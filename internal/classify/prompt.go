package classify

import (
	"fmt"
	"strings"

	"github.com/openintake/plaint/internal/registry"
)

const promptTemplate = `You are an intelligent AI that can detect complaints in text, decide whether it is a complaint, summarize them, and assign them categories.

Detect the complaint in the given text and summarize it. Also assign it a product category and product sub category.

Try using the following categories by default: %s
And the following sub categories: %s

ONLY CREATE NEW CATEGORIES IF NECESSARY OR IS APPROPRIATE TO DO SO.

When using categories and subcategories try not to create new ones if you don't need to and just use previously created ones.

DO NOT INCLUDE BACKTICKS OR A JSON LANGUAGE TAG ANYWHERE, JUST RETURN THE PLAIN JSON.

Return the following JSON output:

{
  "isComplaint": boolean,
  "summary": string,
  "category": string,
  "subcategory": string
}
`

// BuildSystemPrompt renders the classification instruction with the labels
// seen so far as hints.
func BuildSystemPrompt(snap registry.Snapshot) string {
	return fmt.Sprintf(promptTemplate,
		strings.Join(snap.Categories, ", "),
		strings.Join(snap.Subcategories, ", "),
	)
}

package engine

import "fmt"

const chunkPromptTemplate = `Provide a concise summary of the following text, capturing the main points and key information:

%s

Summary (be thorough but concise):`

const reducePromptTemplate = `Create a coherent and concise final summary from these section summaries, keeping their original order:

%s

Final summary:`

func chunkPrompt(text string) string {
	return fmt.Sprintf(chunkPromptTemplate, text)
}

func reducePrompt(text string) string {
	return fmt.Sprintf(reducePromptTemplate, text)
}

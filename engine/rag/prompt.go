package rag

import "fmt"

const cotSteps = `Think step-by-step:
1. What SAP HANA concepts are involved in this question?
2. What configuration parameters or components are relevant?
3. How do these elements interact in a VMware environment?
4. What specific recommendations apply?`

// GraphPrompt builds the chain-of-thought prompt over graph triplets.
func GraphPrompt(context, question string) string {
	return fmt.Sprintf(`You are an expert SAP HANA on VMware consultant. Answer the question using chain-of-thought reasoning.

CONTEXT from semantic knowledge graph:
%s

QUESTION: %s

%s

FINAL ANSWER: Provide a comprehensive response based on your analysis, including specific parameters and recommendations.`, context, question, cotSteps)
}

// ChunkPrompt builds the chain-of-thought prompt over raw documentation.
func ChunkPrompt(context, question string) string {
	return fmt.Sprintf(`You are an expert SAP HANA consultant. Answer the question using chain-of-thought reasoning.

CONTEXT from SAP HANA on VMware documentation:
%s

QUESTION: %s

%s

FINAL ANSWER: Provide a comprehensive response based on your analysis.`, context, question, cotSteps)
}

// VectorPrompt is a plain question-answering prompt over retrieved chunks.
func VectorPrompt(context, question string) string {
	return fmt.Sprintf(`Context information is below.
---------------------
%s
---------------------
Given the context information and not prior knowledge, answer the query.
Query: %s
Answer: `, context, question)
}

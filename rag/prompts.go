package rag

import (
	"fmt"
	"strings"

	"github.com/arogya-labs/medassist/vectorstore"
)

const contextualizePrompt = "Given a chat history and the latest user question " +
	"which might reference context in the chat history, formulate a standalone question " +
	"which can be understood without the chat history. Do NOT answer the question, " +
	"just reformulate it if needed and otherwise return it as is."

const answerPromptHeader = "You are a medical assistant specialized in providing health-related information. " +
	"Use the following pieces of retrieved context to answer the user's medical question. " +
	"Ensure that your response is accurate, concise, and limited to three sentences. " +
	"If you are unsure about the answer or if the information is not available, clearly state that you do not know. " +
	"Always prioritize the user's health and safety in your responses."

func answerPrompt(retrieved []vectorstore.Result) string {
	var sb strings.Builder
	sb.WriteString(answerPromptHeader)
	sb.WriteString("\n\n")
	for i, result := range retrieved {
		sb.WriteString(fmt.Sprintf("Context %d:\n%s\n\n", i+1, result.Chunk.Text))
	}
	return strings.TrimRight(sb.String(), "\n")
}

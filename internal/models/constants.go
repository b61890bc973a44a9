package models

const (
	// metadata keys stored with every index entry
	MetaSource = "source"
	MetaPage   = "page"
	MetaChunk  = "chunk"
	MetaStart  = "start"

	ContextSeparator = "\n\n"
	PDFExtension     = ".pdf"
)

// PromptTemplate is the fixed question answering prompt. It is rendered as a
// Go text template with the variables question and context.
const PromptTemplate = `
You are a legal assistant answering questions only from the provided context about the Dublin Regulation.
If the answer is not in the context, say you don't know.

Question:
{{.question}}

Context:
{{.context}}

Answer in a concise paragraph.
`

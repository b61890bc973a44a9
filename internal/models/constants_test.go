package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPromptTemplate(t *testing.T) {
	assert.Equal(t, 1, strings.Count(PromptTemplate, "{{.question}}"))
	assert.Equal(t, 1, strings.Count(PromptTemplate, "{{.context}}"))
	assert.Less(t, strings.Index(PromptTemplate, "{{.question}}"), strings.Index(PromptTemplate, "{{.context}}"))
	assert.Contains(t, PromptTemplate, "say you don't know")
	assert.Contains(t, PromptTemplate, "Dublin Regulation")
}

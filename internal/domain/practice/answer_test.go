package practice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckMCQ(t *testing.T) {
	q := &Question{Type: TypeMCQ, MCQAnswer: "B"}

	ok, expected := Check(q, " b ")
	assert.True(t, ok)
	assert.Equal(t, "B", expected)

	ok, _ = Check(q, "C")
	assert.False(t, ok)
}

func TestCheckSPR(t *testing.T) {
	q := &Question{Type: TypeSPR, SPRAnswers: StringList{"1/2", "0.5"}}

	for _, answer := range []string{".5", "0.50", "1/2", "2/4", " 0.5 "} {
		ok, _ := Check(q, answer)
		assert.True(t, ok, answer)
	}
	for _, answer := range []string{"", "0.6", "1/3", "half"} {
		ok, _ := Check(q, answer)
		assert.False(t, ok, answer)
	}

	_, expected := Check(q, "9")
	assert.Equal(t, "1/2, 0.5", expected)
}

func TestSPREqual(t *testing.T) {
	assert.True(t, SPREqual("-.25", "-1/4"))
	assert.True(t, SPREqual("3", "3.0"))
	assert.True(t, SPREqual("X + 1", "x+1"))
	assert.False(t, SPREqual("1e2", "100"))
	assert.False(t, SPREqual("", ""))
}

func TestCheckUnknownType(t *testing.T) {
	ok, expected := Check(&Question{Type: "essay"}, "anything")
	assert.False(t, ok)
	assert.Empty(t, expected)
}

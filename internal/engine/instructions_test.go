package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseInstruction_ParenAndSpaceForms(t *testing.T) {
	ass := assert.New(t)

	tests := []struct {
		name string
		text string
		want Instruction
	}{
		{"declare paren", "DECLARE(x, 5)", Instruction{Op: OpDeclare, Args: []string{"x", "5"}}},
		{"declare space", "DECLARE x 5", Instruction{Op: OpDeclare, Args: []string{"x", "5"}}},
		{"add paren", "ADD(z, x, y)", Instruction{Op: OpAdd, Args: []string{"z", "x", "y"}}},
		{"sleep paren", "SLEEP(3)", Instruction{Op: OpSleep, Args: []string{"3"}}},
		{"write paren", "WRITE(0x10, 7)", Instruction{Op: OpWrite, Args: []string{"0x10", "7"}}},
		{"read paren", "READ(v, 16)", Instruction{Op: OpRead, Args: []string{"v", "16"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInstruction(tt.text)
			ass.NoError(err)
			ass.Equal(tt.want, got)
		})
	}
}

func TestParseInstruction_Print(t *testing.T) {
	ass := assert.New(t)

	got, err := ParseInstruction("PRINT('x=' + x)")
	ass.NoError(err)
	ass.Equal(OpPrint, got.Op)
	ass.Equal("'x=' + x", got.Args[0])
}

func TestParseInstruction_ForNested(t *testing.T) {
	ass := assert.New(t)

	got, err := ParseInstruction("FOR([ADD(x,x,1); FOR([SUBTRACT(x,x,1)], 2)], 3)")
	ass.NoError(err)
	ass.Equal(OpFor, got.Op)
	ass.Equal(3, got.Repeats)
	ass.Len(got.Body, 2)
	ass.Equal(OpAdd, got.Body[0].Op)
	ass.Equal(OpFor, got.Body[1].Op)
	ass.Equal(2, got.Body[1].Repeats)
}

func TestParseInstruction_UnknownOp(t *testing.T) {
	ass := assert.New(t)

	_, err := ParseInstruction("JUMP(1)")
	ass.Error(err)
}

func TestParseProgram_EnforcesLimit(t *testing.T) {
	ass := assert.New(t)

	text := ""
	for i := 0; i < 51; i++ {
		if i > 0 {
			text += ";"
		}
		text += "PRINT('a')"
	}

	_, err := ParseProgram(text, true)
	ass.Error(err)

	_, err = ParseProgram(text, false)
	ass.NoError(err)
}

func TestParseProgram_QuotedSemicolonNotASeparator(t *testing.T) {
	ass := assert.New(t)

	instructions, err := ParseProgram("PRINT('a;b')", true)
	ass.NoError(err)
	ass.Len(instructions, 1)
	ass.Equal("'a;b'", instructions[0].Args[0])
}

func TestCloneInstruction_DeepCopiesBody(t *testing.T) {
	ass := assert.New(t)

	original := Instruction{Op: OpFor, Repeats: 2, Body: []Instruction{
		{Op: OpAdd, Args: []string{"x", "x", "1"}},
	}}
	clone := cloneInstruction(original)
	clone.Body[0].Args[0] = "y"

	ass.Equal("x", original.Body[0].Args[0])
	ass.Equal("y", clone.Body[0].Args[0])
}

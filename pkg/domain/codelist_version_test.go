package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCodeListVersion(t *testing.T) {
	tests := []struct {
		input   string
		want    CodeListVersion
		wantErr bool
	}{
		{input: "2.0.0", want: CodeListVersion{Major: 2}},
		{input: "1.12.3", want: CodeListVersion{Major: 1, Minor: 12, Patch: 3}},
		{input: "0.1.0", want: CodeListVersion{Minor: 1}},
		{input: "", wantErr: true},
		{input: "2.0", wantErr: true},
		{input: "2.0.0.1", wantErr: true},
		{input: "2.00.0", wantErr: true},
		{input: "a.b.c", wantErr: true},
		{input: " 2.0.0", wantErr: true},
		{input: "2.-1.0", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCodeListVersion(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCodeListVersionMajorMismatch(t *testing.T) {
	v2 := CodeListVersion{Major: 2}
	assert.True(t, v2.MajorMismatch(CodeListVersion{Major: 1, Minor: 9, Patch: 9}))
	assert.False(t, v2.MajorMismatch(CodeListVersion{Major: 2, Minor: 5}))
	assert.True(t, CodeListVersion{Major: 2, Minor: 5}.MajorMismatch(CodeListVersion{Major: 3}))
}

func TestCodeListVersionString(t *testing.T) {
	v, err := ParseCodeListVersion("2.1.3")
	require.NoError(t, err)
	assert.Equal(t, "2.1.3", v.String())
	assert.False(t, v.IsZero())
	assert.True(t, CodeListVersion{}.IsZero())
}

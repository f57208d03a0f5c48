package whatsapp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessMediaURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			"drive file link",
			"https://drive.google.com/file/d/1AbC_dEf-123/view?usp=sharing",
			"https://drive.google.com/uc?export=download&id=1AbC_dEf-123",
		},
		{
			"drive uc link",
			"https://drive.google.com/uc?id=XyZ987",
			"https://drive.google.com/uc?export=download&id=XyZ987",
		},
		{
			"drive open link",
			"https://drive.google.com/open?id=QrS456",
			"https://drive.google.com/uc?export=download&id=QrS456",
		},
		{
			"plain https passthrough",
			"https://cdn.example.com/banner.png",
			"https://cdn.example.com/banner.png",
		},
		{
			"plain http passthrough",
			"http://cdn.example.com/banner.png",
			"http://cdn.example.com/banner.png",
		},
		{"whitespace trimmed", "  https://cdn.example.com/a.jpg  ", "https://cdn.example.com/a.jpg"},
		{"not a url", "banner.png", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProcessMediaURL(tt.input))
		})
	}
}

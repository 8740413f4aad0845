package respond

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vanhieptech/sigma-sub000/internal/domain"
)

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		data map[string]string
		want string
	}{
		{
			name: "single placeholder",
			tmpl: "Thanks {{nickname}}!",
			data: map[string]string{"nickname": "Ann"},
			want: "Thanks Ann!",
		},
		{
			name: "multiple placeholders",
			tmpl: "{{nickname}} sent {{repeatCount}}x {{giftName}}",
			data: map[string]string{"nickname": "Bob", "repeatCount": "3", "giftName": "Rose"},
			want: "Bob sent 3x Rose",
		},
		{
			name: "unmatched placeholder stays intact",
			tmpl: "Hello {{nonexistent}}, welcome!",
			data: map[string]string{"nickname": "Ann"},
			want: "Hello {{nonexistent}}, welcome!",
		},
		{
			name: "repeated placeholder",
			tmpl: "{{nickname}} {{nickname}}",
			data: map[string]string{"nickname": "Cy"},
			want: "Cy Cy",
		},
		{
			name: "empty value substitutes",
			tmpl: "[{{answer}}]",
			data: map[string]string{"answer": ""},
			want: "[]",
		},
		{
			name: "no placeholders",
			tmpl: "plain text",
			data: nil,
			want: "plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderTemplate(tt.tmpl, tt.data))
		})
	}
}

func TestDefaultPersonality_CoversAllResponseKinds(t *testing.T) {
	p := DefaultPersonality()

	kinds := []domain.ResponseKind{
		domain.RespondQuestion, domain.RespondGift, domain.RespondLike,
		domain.RespondFollow, domain.RespondShare, domain.RespondJoin,
		domain.RespondPurchase,
	}
	for _, kind := range kinds {
		assert.NotEmpty(t, p.Templates[kind], "missing template for %s", kind)
	}
	assert.NotEmpty(t, p.SystemPrompt)
	assert.NotEmpty(t, p.Voice.VoiceID)
}

package gen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPascal(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"posts", "Posts"},
		{"title_author", "TitleAuthor"},
		{"user_id", "UserID"},
		{"userId", "UserID"},
		{"html-body", "HTMLBody"},
		{"Post", "Post"},
		{"id", "ID"},
		{"in progress", "InProgress"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, pascal(tt.in))
		})
	}
}

func TestAddAcronym(t *testing.T) {
	assert.Equal(t, "IsbnCode", pascal("isbn_code"))
	AddAcronym("isbn")
	t.Cleanup(func() {
		acronymsMu.Lock()
		delete(acronyms, "ISBN")
		acronymsMu.Unlock()
	})
	assert.Equal(t, "ISBNCode", pascal("isbn_code"))
}

func TestReceiver(t *testing.T) {
	assert.Equal(t, "p", receiver("PostAddArgs"))
	assert.Equal(t, "x", receiver(""))
}

func TestIsExported(t *testing.T) {
	assert.True(t, isExported("Post"))
	assert.True(t, isExported("Post2"))
	assert.False(t, isExported("post"))
	assert.False(t, isExported(""))
	assert.False(t, isExported("Post!"))
}

package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateImageType(t *testing.T) {
	assert.NoError(t, ValidateImageType(""))
	assert.NoError(t, ValidateImageType("image/jpeg"))
	assert.NoError(t, ValidateImageType("IMAGE/PNG"))
	assert.Error(t, ValidateImageType("image/tiff"))
	assert.Error(t, ValidateImageType("application/pdf"))
}

func TestValidateImageURL(t *testing.T) {
	assert.NoError(t, ValidateImageURL("https://cdn.example.com/site/1.jpg"))
	assert.NoError(t, ValidateImageURL("http://images.example.com/a.png"))

	assert.Error(t, ValidateImageURL(""))
	assert.Error(t, ValidateImageURL("ftp://example.com/a.jpg"))
	assert.Error(t, ValidateImageURL("http://localhost:9000/bucket/a.jpg"))
	assert.Error(t, ValidateImageURL("http://127.0.0.1/a.jpg"))
	assert.Error(t, ValidateImageURL("http://192.168.1.5/a.jpg"))
	assert.Error(t, ValidateImageURL("http://10.0.0.8/a.jpg"))
}

func TestValidateGrade(t *testing.T) {
	assert.NoError(t, ValidateGrade(""))
	for _, g := range []string{"A", "B", "C", "D", "E", "F"} {
		assert.NoError(t, ValidateGrade(g), g)
	}
	assert.Error(t, ValidateGrade("G"))
	assert.Error(t, ValidateGrade("a"))
	assert.Error(t, ValidateGrade("AB"))
}

func TestValidateStatus(t *testing.T) {
	assert.NoError(t, ValidateStatus(""))
	assert.NoError(t, ValidateStatus("completed"))
	assert.NoError(t, ValidateStatus("failed"))
	assert.Error(t, ValidateStatus("done"))
}

func TestPaginationClamps(t *testing.T) {
	assert.Equal(t, 1, ValidatePage(0))
	assert.Equal(t, 1, ValidatePage(-3))
	assert.Equal(t, 7, ValidatePage(7))

	assert.Equal(t, 20, ValidatePageSize(0))
	assert.Equal(t, 100, ValidatePageSize(5000))
	assert.Equal(t, 50, ValidatePageSize(50))

	assert.Equal(t, 10, ValidateTopN(0))
	assert.Equal(t, 50, ValidateTopN(999))
	assert.Equal(t, 5, ValidateTopN(5))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  hello  "))
	assert.Equal(t, "ab", SanitizeString("a\x00b"))
	assert.Equal(t, "a\nb", SanitizeString("a\nb"))
	assert.Equal(t, "ab", SanitizeString("a\x07b"))
}

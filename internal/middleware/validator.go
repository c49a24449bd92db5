package middleware

import (
	"fmt"
	"net/url"
	"strings"
)

// Input validation and sanitization utilities

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// ValidateImageType checks the declared MIME type of uploaded image data
func ValidateImageType(mime string) error {
	if mime == "" {
		return nil // optional, sniffed from the bytes anyway
	}
	if !allowedImageTypes[strings.ToLower(mime)] {
		return fmt.Errorf("unsupported image type: %s (allowed: jpeg, png, webp, gif)", mime)
	}
	return nil
}

// ValidateImageURL validates and sanitizes pre-hosted image URLs
func ValidateImageURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (allowed: http, https)", u.Scheme)
	}

	// Check for localhost/internal IPs (SSRF protection)
	host := strings.ToLower(u.Hostname())
	blocked := []string{"localhost", "127.0.0.1", "0.0.0.0", "[::]", "::1"}
	for _, b := range blocked {
		if strings.Contains(host, b) {
			return fmt.Errorf("localhost/internal IPs are not allowed")
		}
	}

	// Block private IP ranges (basic check)
	if strings.HasPrefix(host, "10.") ||
		strings.HasPrefix(host, "192.168.") ||
		strings.HasPrefix(host, "172.16.") ||
		strings.HasPrefix(host, "172.31.") {
		return fmt.Errorf("private IP ranges are not allowed")
	}

	return nil
}

// ValidateGrade checks an admin grade filter
func ValidateGrade(grade string) error {
	if grade == "" {
		return nil
	}
	if len(grade) != 1 || grade[0] < 'A' || grade[0] > 'F' {
		return fmt.Errorf("invalid grade: %s (allowed: A-F)", grade)
	}
	return nil
}

var allowedStatuses = map[string]bool{
	"pending": true, "processing": true, "completed": true, "failed": true,
}

// ValidateStatus checks an admin status filter
func ValidateStatus(status string) error {
	if status == "" {
		return nil
	}
	if !allowedStatuses[status] {
		return fmt.Errorf("invalid status: %s", status)
	}
	return nil
}

// ValidatePage clamps a page number
func ValidatePage(page int) int {
	if page <= 0 {
		return 1
	}
	return page
}

// ValidatePageSize clamps a page size
func ValidatePageSize(size int) int {
	if size <= 0 {
		return 20 // default
	}
	if size > 100 {
		return 100 // max
	}
	return size
}

// ValidateTopN clamps the admin top-N breakdown size
func ValidateTopN(n int) int {
	if n <= 0 {
		return 10
	}
	if n > 50 {
		return 50
	}
	return n
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

package prompt

import "strings"

// ValidateCreateInput validates fields required to create a prompt.
func ValidateCreateInput(req CreateRequest) error {
	if strings.TrimSpace(req.Title) == "" {
		return ErrInvalidInput
	}
	if strings.TrimSpace(req.Content) == "" {
		return ErrInvalidInput
	}
	return nil
}

// ValidatePatch rejects patches that would blank the title or content.
func ValidatePatch(patch Patch) error {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return ErrInvalidInput
	}
	if patch.Content != nil && strings.TrimSpace(*patch.Content) == "" {
		return ErrInvalidInput
	}
	return nil
}

// normalizeTags copies tags, trimming each and dropping blanks.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

package gateway

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashrelay/hashrelay/internal/core/domain"
)

// ValidateSubmission checks algorithm membership and hash format before a
// request is handed to the dispatcher. The pipeline trusts its input once
// admitted, so this boundary is the only place format errors are caught.
func ValidateSubmission(algorithm, hash string) error {
	algorithm = strings.ToLower(strings.TrimSpace(algorithm))
	if _, ok := domain.SupportedAlgorithms[algorithm]; !ok {
		return fmt.Errorf("unsupported algorithm %q (supported: %s)", algorithm, supportedAlgorithmList())
	}
	pattern, ok := domain.HashPatterns[algorithm]
	if !ok || !pattern.MatchString(hash) {
		return fmt.Errorf("hash value does not match the expected %s format", algorithm)
	}
	return nil
}

func supportedAlgorithmList() string {
	names := make([]string, 0, len(domain.SupportedAlgorithms))
	for name := range domain.SupportedAlgorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

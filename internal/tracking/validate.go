package tracking

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/TemirB/freight-portal/internal/upstream"
)

var (
	awbPattern       = regexp.MustCompile(`^\d{11}$`)
	containerPattern = regexp.MustCompile(`^[A-Z]{4}\d{7}$`)
)

// NormalizeAWB drops the separators people type into air waybill numbers.
func NormalizeAWB(s string) string {
	return strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(s))
}

// ValidAWB reports whether awb is a 3-digit airline prefix followed by an
// 8-digit serial whose last digit is the first seven digits modulo 7.
func ValidAWB(awb string) bool {
	if !awbPattern.MatchString(awb) {
		return false
	}
	serial := awb[3:]
	var n int
	for _, r := range serial[:7] {
		n = n*10 + int(r-'0')
	}
	return n%7 == int(serial[7]-'0')
}

// Validate checks a creation request before anything is sent upstream.
func (r *CreateRequest) Validate() error {
	r.AwbNumber = NormalizeAWB(r.AwbNumber)
	r.ContainerNumber = strings.ToUpper(strings.TrimSpace(r.ContainerNumber))

	switch {
	case r.AwbNumber == "" && r.ContainerNumber == "":
		return upstream.Validation("an AWB or container number is required")
	case r.AwbNumber != "" && r.ContainerNumber != "":
		return upstream.Validation("provide either an AWB or a container number, not both")
	case r.AwbNumber != "" && !ValidAWB(r.AwbNumber):
		return upstream.Validation("invalid AWB number: expected 11 digits with a valid check digit")
	case r.ContainerNumber != "" && !containerPattern.MatchString(r.ContainerNumber):
		return upstream.Validation("invalid container number: expected 4 letters and 7 digits")
	}

	var err error
	if r.Tags, err = uniqueFold("tag", r.Tags); err != nil {
		return err
	}
	if r.Followers, err = uniqueFold("follower", r.Followers); err != nil {
		return err
	}
	for _, f := range r.Followers {
		if !strings.Contains(f, "@") {
			return upstream.Validation(fmt.Sprintf("follower %q is not an email address", f))
		}
	}
	return nil
}

// uniqueFold trims values, drops empty ones and rejects case-insensitive duplicates.
func uniqueFold(what string, values []string) ([]string, error) {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		k := strings.ToLower(v)
		if _, ok := seen[k]; ok {
			return nil, upstream.Validation(fmt.Sprintf("duplicate %s %q", what, v))
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out, nil
}

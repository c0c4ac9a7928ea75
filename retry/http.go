package retry

// HTTPStatusRetry returns a RetryOn predicate that scans the reason string
// for the first plausible three-digit HTTP status code (100-599) and
// retries iff that code is in the given set. Reasons without a recognizable
// status code are not retried.
func HTTPStatusRetry(codes ...int) func(reason string) bool {
	set := make(map[int]struct{}, len(codes))
	for _, code := range codes {
		set[code] = struct{}{}
	}

	return func(reason string) bool {
		code, ok := scanStatusCode(reason)
		if !ok {
			return false
		}

		_, retry := set[code]

		return retry
	}
}

// scanStatusCode extracts the first standalone three-digit run in the range
// 100-599 from s. Digit runs longer than three are skipped entirely, so
// "1234" never yields 123.
func scanStatusCode(s string) (int, bool) {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			continue
		}

		// Measure the full digit run starting at i.
		j := i
		for j < len(s) && isDigit(s[j]) {
			j++
		}

		if j-i == 3 {
			code := int(s[i]-'0')*100 +
				int(s[i+1]-'0')*10 +
				int(s[i+2]-'0')
			if code >= 100 && code <= 599 {
				return code, true
			}
		}

		i = j
	}

	return 0, false
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

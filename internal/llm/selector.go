package llm

// Resolve picks exactly one provider name for a turn. Precedence: requested,
// then the user's stored preference, then the environment default, each
// taken only when actually configured; otherwise the first configured
// provider in stable sort order. When nothing is configured the environment
// default is returned anyway so the first call fails with a clear
// not-configured error instead of a silent fallback.
func Resolve(requested, userPref, envDefault string, configured map[string]bool) string {
	for _, candidate := range []string{requested, userPref, envDefault} {
		if candidate != "" && configured[candidate] {
			return candidate
		}
	}
	if names := sortedConfigured(configured); len(names) > 0 {
		return names[0]
	}
	if envDefault != "" {
		return envDefault
	}
	if requested != "" {
		return requested
	}
	return ProviderGemini
}

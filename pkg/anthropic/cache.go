package anthropic

// BuildCachedSystemBlocks returns a single system block with a prompt-cache
// breakpoint. Drafting sends the same system prompt for every lead, so all
// calls after the first read it from cache.
func BuildCachedSystemBlocks(text string, ttl string) []SystemBlock {
	if text == "" {
		return nil
	}
	return []SystemBlock{{Text: text, CacheControl: &CacheControl{TTL: ttl}}}
}

package tokenizer

// defaultStopwords returns the built-in Chinese stop-word table used when no
// stop-word source is configured or the configured one fails.
func defaultStopwords() map[string]struct{} {
	words := []string{
		"的", "了", "在", "是", "我", "有", "和", "就", "不", "人", "都", "一", "一个",
		"上", "也", "很", "到", "说", "要", "去", "你", "会", "着", "没有", "看", "好",
		"自己", "这", "那", "可以", "但是", "只是", "如果", "因为", "所以", "或者",
		"而且", "虽然", "然而", "不过", "除了", "包括", "关于", "通过", "由于",
	}

	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

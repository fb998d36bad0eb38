package generation

// Static user-facing fallbacks keyed by error class. Users never see a
// raw provider error.
var fallbackMessages = map[ErrorClass]string{
	ClassRetryable:     "不好意思，当前咨询人数较多，请稍后再试一下哦。",
	ClassAuth:          "不好意思，智能回复暂时不可用，我们已通知工作人员处理。",
	ClassContextLength: "您的问题内容较长，麻烦您拆分成几个小问题再发送好吗？",
	ClassUnknown:       "不好意思，刚才没有处理成功，请再发送一次试试。",
}

// FallbackMessage returns the graceful reply for a failed generation call.
func FallbackMessage(class ErrorClass) string {
	if msg, ok := fallbackMessages[class]; ok {
		return msg
	}

	return fallbackMessages[ClassUnknown]
}

package chat

// Reply is one persona's answer pushed to the browser as an ai-message event.
type Reply struct {
	Agent   string `json:"agent"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

const (
	// SystemAgent 标记由服务端合成的错误回复。
	SystemAgent = "system"
	SystemName  = "System"
	// SystemErrorMessage 是接力失败时唯一对用户可见的文案。
	SystemErrorMessage = "AIの応答中にエラーが起きました"
	// EmptyReplyPlaceholder 在模型未返回内容时使用。
	EmptyReplyPlaceholder = "……（応答なし）"
)

// SystemErrorReply returns the synthetic reply emitted when the relay aborts.
func SystemErrorReply() Reply {
	return Reply{Agent: SystemAgent, Name: SystemName, Message: SystemErrorMessage}
}

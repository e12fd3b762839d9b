package realtime

// Bridge is the chat service's window into the realtime core, combining
// user-directed events (registry) with chat-directed ones (router). It
// implements ports.RealtimeBridge.
type Bridge struct {
	registry *Registry
	router   *Router
}

func NewBridge(registry *Registry, router *Router) *Bridge {
	return &Bridge{registry: registry, router: router}
}

func (b *Bridge) NotifyUser(userID int64, event any) {
	b.registry.NotifyUser(userID, event)
}

func (b *Bridge) NotifyChat(chatID int64, event any) {
	b.router.NotifyChat(chatID, event)
}

func (b *Bridge) CloseChat(chatID int64, reason string) {
	b.router.CloseChat(chatID, reason)
}

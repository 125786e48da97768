package app

// AdminPolicy answers whether a Telegram identity may perform admin
// operations. It is built once at startup from configuration and passed to
// services explicitly; nothing reads admin IDs from process-wide state.
type AdminPolicy struct {
	ids map[int64]struct{}
}

func NewAdminPolicy(adminIDs []int64) *AdminPolicy {
	ids := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		ids[id] = struct{}{}
	}
	return &AdminPolicy{ids: ids}
}

func (p *AdminPolicy) IsAdmin(telegramID int64) bool {
	_, ok := p.ids[telegramID]
	return ok
}

package app

import (
	"fmt"
	"strings"

	"github.com/charlesng35/kiddies/internal/cache"
	"github.com/charlesng35/kiddies/internal/calendar"
	"github.com/charlesng35/kiddies/internal/services"
)

// InviteOptions converts InviteConfig into InviteService options. Links point at frontendURL.
func (c InviteConfig) InviteOptions(frontendURL string) []services.InviteOption {
	opts := []services.InviteOption{services.WithInviteBaseURL(strings.TrimSpace(frontendURL))}
	if c.Expiry > 0 {
		opts = append(opts, services.WithInviteExpiry(c.Expiry))
	}
	if c.TokenBytes > 0 {
		opts = append(opts, services.WithInviteTokenSize(c.TokenBytes))
	}
	return opts
}

// Calendar resolves the configured reference time zone.
func (c CensusConfig) Calendar() (*calendar.Calendar, error) {
	cal, err := calendar.New(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("census.timezone: %w", err)
	}
	return cal, nil
}

// CensusOptions converts CensusConfig into CensusService options. Dashboard stats are cached in
// store when both the store and a positive TTL are present.
func (c CensusConfig) CensusOptions(store cache.Store) ([]services.CensusOption, error) {
	cal, err := c.Calendar()
	if err != nil {
		return nil, err
	}
	opts := []services.CensusOption{services.WithCensusCalendar(cal)}
	if store != nil && c.DashboardCacheTTL > 0 {
		opts = append(opts, services.WithCensusCache(store, c.DashboardCacheTTL))
	}
	return opts, nil
}

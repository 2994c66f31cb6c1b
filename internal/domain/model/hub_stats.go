package model

import "time"

type HubStats struct {
	TotalConnections int           `json:"total_connections"`
	StateRevision    uint64        `json:"state_revision"`
	LastUpdate       int64         `json:"last_update"`
	Items            int           `json:"items"`
	Uptime           time.Duration `json:"uptime"`
}

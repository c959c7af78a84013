package domain

import "time"

// StreamInfo is the operator overview of one diagnostic stream.
type StreamInfo struct {
	Name          string `json:"name"`
	Length        int64  `json:"length"`
	Groups        int64  `json:"groups"`
	EntriesAdded  int64  `json:"entries_added"`
	FirstRecordID string `json:"first_record_id,omitempty"`
	LastRecordID  string `json:"last_record_id,omitempty"`
}

type ConsumerGroupInfo struct {
	Name            string `json:"name"`
	Consumers       int64  `json:"consumers"`
	Pending         int64  `json:"pending"`
	LastDeliveredID string `json:"last_delivered_id"`
	Lag             int64  `json:"lag"`
}

// ConsumerInfo is one shipper instance in a group. Idle serializes in nanoseconds.
type ConsumerInfo struct {
	Name     string        `json:"name"`
	Pending  int64         `json:"pending"`
	Idle     time.Duration `json:"idle"`
	Inactive time.Duration `json:"inactive"`
}

// PendingMessageSummary counts delivered but unacknowledged records.
type PendingMessageSummary struct {
	Total          int64            `json:"total"`
	FirstMessageID string           `json:"first_message_id,omitempty"`
	LastMessageID  string           `json:"last_message_id,omitempty"`
	ConsumerTotals map[string]int64 `json:"consumer_totals,omitempty"`
}

type PendingMessageDetail struct {
	ID         string        `json:"id"`
	Consumer   string        `json:"consumer"`
	Idle       time.Duration `json:"idle"`
	Deliveries int64         `json:"deliveries"`
}

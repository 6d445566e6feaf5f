package config

import "time"

type Config struct {
	Mock    bool
	API     API
	Poll    Poll
	Logs    Logs
	Metrics Metrics
}

type API struct {
	BaseURL string
	Timeout time.Duration
	QPS     float32
	Burst   int
	Retry   Retry
}

type Retry struct {
	Attempts uint
	Delay    time.Duration
}

type Poll struct {
	Interval   time.Duration
	Timeout    time.Duration
	EmptyBatch string
}

type Metrics struct {
	Port int // 0 disables the endpoint
}

type Logs struct {
	Level   int
	Encoder EncoderType
	File    string // empty discards logs, the terminal belongs to the UI
}

type EncoderType string

const (
	EncoderTypeJson    EncoderType = "json"
	EncoderTypeConsole EncoderType = "console"
)

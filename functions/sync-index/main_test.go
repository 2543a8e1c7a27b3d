package main

import (
	"context"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letmevibethatforyou/promptplace/internal/indexsync"
)

type fakeSyncer struct {
	report *indexsync.Report
	err    error
	calls  int
	opts   int
}

func (f *fakeSyncer) SyncIndex(_ context.Context, opts ...indexsync.Option) (*indexsync.Report, error) {
	f.calls++
	f.opts = len(opts)
	return f.report, f.err
}

func TestHandleScheduledEvent(t *testing.T) {
	event := events.EventBridgeEvent{ID: "evt-1", Source: "aws.events", DetailType: "Scheduled Event"}

	tests := []struct {
		name    string
		syncer  *fakeSyncer
		wantErr string
	}{
		{
			name:   "all indexed",
			syncer: &fakeSyncer{report: &indexsync.Report{Total: 3, Indexed: 3}},
		},
		{
			name:    "partial failure",
			syncer:  &fakeSyncer{report: &indexsync.Report{Total: 3, Indexed: 2, Failed: 1}},
			wantErr: "1 of 3 prompts failed to index",
		},
		{
			name:    "sync error",
			syncer:  &fakeSyncer{err: errors.New("elasticsearch is not reachable")},
			wantErr: "not reachable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(tt.syncer, zerolog.Nop(), indexsync.WithPoolSize(2))
			report, err := h.HandleScheduledEvent(context.Background(), event)
			assert.Equal(t, 1, tt.syncer.calls)
			assert.Equal(t, 1, tt.syncer.opts)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 3, report.Indexed)
		})
	}
}

package service

import (
	"context"
	"sync"

	"github.com/ToppleTheNun/mchammer-sub000/internal/api"
)

// fakeLogSource scripts the external log source for tests. Roster
// fetches fan out, so call bookkeeping is mutex-guarded.
type fakeLogSource struct {
	reportFights     func(ctx context.Context, code string) (*api.ReportFights, error)
	playerDetails    func(ctx context.Context, code string, fightIDs []int) (*api.PlayerDetails, error)
	damageTakenPages func(ctx context.Context, code string, startTime, endTime int64) (*api.EventPage, error)

	mu                sync.Mutex
	damageTakenCalls  int
	requestedStarts   []int64
	requestedFightIDs [][]int
}

func (f *fakeLogSource) GetReportFights(ctx context.Context, code string) (*api.ReportFights, error) {
	return f.reportFights(ctx, code)
}

func (f *fakeLogSource) GetPlayerDetails(ctx context.Context, code string, fightIDs []int) (*api.PlayerDetails, error) {
	f.mu.Lock()
	f.requestedFightIDs = append(f.requestedFightIDs, fightIDs)
	f.mu.Unlock()
	return f.playerDetails(ctx, code, fightIDs)
}

func (f *fakeLogSource) GetDamageTakenPage(ctx context.Context, code string, startTime, endTime int64) (*api.EventPage, error) {
	f.mu.Lock()
	f.damageTakenCalls++
	f.requestedStarts = append(f.requestedStarts, startTime)
	f.mu.Unlock()
	return f.damageTakenPages(ctx, code, startTime, endTime)
}

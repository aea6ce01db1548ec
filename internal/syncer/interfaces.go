package syncer

import (
	"context"

	"github.com/cleared-dev/banksync/internal/model"
	"github.com/cleared-dev/banksync/internal/remote"
)

//go:generate mockgen -destination=mocks/mock_interfaces.go -source=interfaces.go

// PageFetcher returns one page of an account's transactions.
type PageFetcher interface {
	Fetch(ctx context.Context, account model.RemoteAccount, window model.SyncWindow, pageNum, pageSize int) (remote.Page, error)
}

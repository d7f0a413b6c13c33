package domain

import (
	"testing"

	"github.com/dropvault/backend/internal/common"
	"github.com/dropvault/backend/internal/entity"
	"github.com/dropvault/backend/internal/model"
	"github.com/dropvault/backend/internal/repository"
	"github.com/dropvault/backend/pkg/errorx"
	"github.com/dropvault/backend/pkg/testutil"
	"github.com/dropvault/backend/pkg/xcontext"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestEconomyDomain() *economyDomain {
	return NewEconomyDomain(
		repository.NewLedgerRepository(),
		repository.NewAwardRepository(),
		common.NewAuditRecorder(repository.NewAuditLogRepository()),
	)
}

func Test_economyDomain_AdjustBucketBalance(t *testing.T) {
	ctx := xcontext.WithRequestUserID(testutil.MockContext(), "admin-1")

	d := newTestEconomyDomain()

	resp, err := d.AdjustBucketBalance(ctx, &model.AdjustBucketBalanceRequest{
		Bucket:    "T5",
		AmountUSD: "100.25",
		Reason:    "initial funding",
	})
	require.NoError(t, err)
	require.Equal(t, "100.25", resp.BalanceUSD)

	resp, err = d.AdjustBucketBalance(ctx, &model.AdjustBucketBalanceRequest{
		Bucket:    "T5",
		AmountUSD: "-0.25",
		Reason:    "correction",
	})
	require.NoError(t, err)
	require.Equal(t, "100", resp.BalanceUSD)

	// An overdraw is rejected and leaves the balance untouched.
	_, err = d.AdjustBucketBalance(ctx, &model.AdjustBucketBalanceRequest{
		Bucket:    "T5",
		AmountUSD: "-500",
		Reason:    "too much",
	})
	require.Error(t, err)
	require.Equal(t, errorx.PoolExhausted, err.(errorx.Error).Code)

	balances, err := d.GetBucketBalances(ctx, &model.GetBucketBalancesRequest{})
	require.NoError(t, err)
	require.Len(t, balances.Balances, 1)
	require.Equal(t, "100", balances.Balances[0].BalanceUSD)

	// The adjustment is attributed to the admin in the audit log.
	logs, err := repository.NewAuditLogRepository().GetList(ctx,
		repository.GetListAuditLogFilter{Actor: "admin-1"})
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	require.Equal(t, "adjust_bucket_balance", logs[0].Action)

	// Bad amounts are rejected up front.
	_, err = d.AdjustBucketBalance(ctx, &model.AdjustBucketBalanceRequest{
		Bucket: "T5", AmountUSD: "not-a-number",
	})
	require.Error(t, err)
	require.Equal(t, errorx.BadRequest, err.(errorx.Error).Code)

	_, err = d.AdjustBucketBalance(ctx, &model.AdjustBucketBalanceRequest{
		Bucket: "T5", AmountUSD: "0",
	})
	require.Error(t, err)
	require.Equal(t, errorx.BadRequest, err.(errorx.Error).Code)
}

func Test_economyDomain_GetRoomEscrowLedger(t *testing.T) {
	ctx := testutil.MockContext()
	room, err := testutil.SampleRoom(ctx, nil)
	require.NoError(t, err)

	fundRoom(t, ctx, room.ID, 500, 1000)

	d := newTestEconomyDomain()

	resp, err := d.GetRoomEscrowLedger(ctx, &model.GetRoomEscrowLedgerRequest{RoomID: room.ID})
	require.NoError(t, err)
	require.Len(t, resp.Movements, 2)

	var sum int64
	for _, movement := range resp.Movements {
		require.Equal(t, string(entity.LedgerEventAdd), movement.EventType)
		sum += movement.DeltaCents
	}
	require.Equal(t, int64(1500), sum)

	_, err = d.GetRoomEscrowLedger(ctx, &model.GetRoomEscrowLedgerRequest{})
	require.Error(t, err)
	require.Equal(t, errorx.BadRequest, err.(errorx.Error).Code)
}

func Test_economyDomain_FulfillAward(t *testing.T) {
	ctx := testutil.MockContext()
	room, err := testutil.SampleRoom(ctx, &entity.Room{ProductClassID: "pc-1"})
	require.NoError(t, err)

	fundRoom(t, ctx, room.ID, 1000)

	_, _, err = newTestSettlement().Settle(ctx, room.ID, SettleModeForced)
	require.NoError(t, err)

	award, err := repository.NewAwardRepository().GetByRoomID(ctx, room.ID)
	require.NoError(t, err)
	require.Equal(t, "pc-1", award.ProductClassID)

	d := newTestEconomyDomain()

	resp, err := d.FulfillAward(ctx, &model.FulfillAwardRequest{
		AwardID:  award.ID,
		RevealID: "reveal-1",
	})
	require.NoError(t, err)
	require.Equal(t, string(entity.AwardStatusFulfilled), resp.Status)

	fulfilled, err := repository.NewAwardRepository().GetByID(ctx, award.ID)
	require.NoError(t, err)
	require.Equal(t, "reveal-1", fulfilled.RevealID.String)

	// The hold was already out of the balance; fulfilling spends it
	// without moving the balance again.
	balance, err := repository.NewLedgerRepository().GetBucketBalance(ctx, award.Bucket)
	require.NoError(t, err)
	require.True(t, balance.BalanceUSD.IsZero())

	// A terminal award cannot transition again.
	_, err = d.FulfillAward(ctx, &model.FulfillAwardRequest{AwardID: award.ID})
	require.Error(t, err)
	require.Equal(t, errorx.InvalidDropState, err.(errorx.Error).Code)

	_, err = d.CancelAward(ctx, &model.CancelAwardRequest{AwardID: award.ID})
	require.Error(t, err)
	require.Equal(t, errorx.InvalidDropState, err.(errorx.Error).Code)
}

func Test_economyDomain_CancelAward(t *testing.T) {
	ctx := testutil.MockContext()
	room, err := testutil.SampleRoom(ctx, nil)
	require.NoError(t, err)

	fundRoom(t, ctx, room.ID, 1000)

	_, _, err = newTestSettlement().Settle(ctx, room.ID, SettleModeForced)
	require.NoError(t, err)

	award, err := repository.NewAwardRepository().GetByRoomID(ctx, room.ID)
	require.NoError(t, err)

	d := newTestEconomyDomain()

	resp, err := d.CancelAward(ctx, &model.CancelAwardRequest{AwardID: award.ID, Expired: true})
	require.NoError(t, err)
	require.Equal(t, string(entity.AwardStatusExpired), resp.Status)

	// The hold returns to the bucket.
	balance, err := repository.NewLedgerRepository().GetBucketBalance(ctx, award.Bucket)
	require.NoError(t, err)
	require.True(t, balance.BalanceUSD.Equal(decimal.NewFromInt(10)))

	_, err = d.FulfillAward(ctx, &model.FulfillAwardRequest{AwardID: award.ID})
	require.Error(t, err)
	require.Equal(t, errorx.InvalidDropState, err.(errorx.Error).Code)
}

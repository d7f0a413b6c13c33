package domain

import (
	"github.com/dropvault/backend/internal/entity"
	"github.com/dropvault/backend/internal/model"
)

func convertRoom(room *entity.Room) model.Room {
	result := model.Room{
		ID:                 room.ID,
		Tier:               string(room.Tier),
		Category:           room.Category,
		IsMystery:          room.IsMystery,
		ProductClassID:     room.ProductClassID,
		Status:             string(room.Status),
		StartAt:            room.StartAt,
		EndAt:              room.EndAt,
		MinParticipants:    room.MinParticipants,
		MaxParticipants:    room.MaxParticipants,
		EscrowTargetCents:  room.EscrowTargetCents,
		EscrowBalanceCents: room.EscrowBalanceCents,
		FundingProgress:    fundingProgress(room.EscrowBalanceCents, room.EscrowTargetCents),
		TierCapCents:       room.TierCapCents,
		TotalTickets:       room.TotalTickets,
		SeedCommitment:     room.SeedCommitment,
		CancelReason:       room.CancelReason,
	}

	if room.LockAt.Valid {
		result.LockAt = &room.LockAt.Time
	}

	if room.DeadlineAt.Valid {
		result.DeadlineAt = &room.DeadlineAt.Time
	}

	if room.WinnerEntryID.Valid {
		result.WinnerEntryID = room.WinnerEntryID.String
	}

	if room.WinnerUserID.Valid {
		result.WinnerUserID = room.WinnerUserID.String
	}

	return result
}

func convertRoomEntry(entry *entity.RoomEntry, rank int) model.RoomEntry {
	return model.RoomEntry{
		ID:            entry.ID,
		RoomID:        entry.RoomID,
		UserID:        entry.UserID,
		AmountCents:   entry.AmountCents,
		Tickets:       entry.Tickets,
		TicketOffset:  entry.TicketOffset,
		PriorityScore: entry.PriorityScore,
		Outcome:       string(entry.Outcome),
		Rank:          rank,
		StakedAt:      entry.StakedAt,
	}
}

// convertLotteryDraw exposes the full reveal for fair draws. Manual
// overrides carry no server seed, which is how a reader tells them apart.
func convertLotteryDraw(draw *entity.LotteryDraw) model.LotteryDraw {
	return model.LotteryDraw{
		ID:                  draw.ID,
		RoomID:              draw.RoomID,
		WinnerEntryID:       draw.WinnerEntryID,
		WinningTicketNumber: draw.WinningTicketNumber,
		TotalTickets:        draw.TotalTickets,
		SeedCommitment:      draw.SeedCommitment,
		ServerSeed:          draw.ServerSeed,
		ClientSeed:          draw.ClientSeed,
		Nonce:               draw.Nonce,
		VerificationHash:    draw.VerificationHash,
		IsManualOverride:    draw.IsManualOverride,
		DrawnAt:             draw.DrawnAt,
	}
}

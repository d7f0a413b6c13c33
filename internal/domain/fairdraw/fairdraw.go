package fairdraw

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/dropvault/backend/internal/entity"
	"github.com/dropvault/backend/internal/repository"
	"github.com/dropvault/backend/pkg/crypto"
	"github.com/google/uuid"
)

// The draw is commit-reveal: the server seed is generated before any entry
// exists and only its commitment is published. At draw time the revealed
// seed, the client seed, and the nonce produce a digest anyone can
// recompute; the winning ticket is 1 + digest mod total_tickets.

const serverSeedBytes = 32

func NewServerSeed() (string, error) {
	return crypto.RandomHex(serverSeedBytes)
}

func Commitment(serverSeed string) string {
	return crypto.SHA256Hex([]byte(serverSeed))
}

func Digest(serverSeed, clientSeed string, nonce int64) string {
	return crypto.SHA256Hex([]byte(serverSeed + clientSeed + strconv.FormatInt(nonce, 10)))
}

// WinningTicket returns the 1-based winning ticket number for the given
// seed triple.
func WinningTicket(serverSeed, clientSeed string, nonce, totalTickets int64) (int64, string, error) {
	if totalTickets < 1 {
		return 0, "", fmt.Errorf("cannot draw over %d tickets", totalTickets)
	}

	digest := Digest(serverSeed, clientSeed, nonce)
	mod, err := crypto.DigestMod(digest, totalTickets)
	if err != nil {
		return 0, "", err
	}

	return 1 + mod, digest, nil
}

// Verify recomputes a draw from its public fields alone: the commitment
// must match the revealed server seed and the digest must reproduce both
// the verification hash and the winning ticket number.
func Verify(draw *entity.LotteryDraw) error {
	if draw.IsManualOverride {
		return fmt.Errorf("draw %s is a manual override, not a fair draw", draw.ID)
	}

	if Commitment(draw.ServerSeed) != draw.SeedCommitment {
		return fmt.Errorf("server seed does not match its commitment")
	}

	winning, digest, err := WinningTicket(draw.ServerSeed, draw.ClientSeed, draw.Nonce, draw.TotalTickets)
	if err != nil {
		return err
	}

	if digest != draw.VerificationHash {
		return fmt.Errorf("digest does not match the verification hash")
	}

	if winning != draw.WinningTicketNumber {
		return fmt.Errorf("digest selects ticket %d, draw recorded %d", winning, draw.WinningTicketNumber)
	}

	return nil
}

// FindWinner resolves the entry whose range [offset, offset+tickets) holds
// the zero-based ticket index. Entries must be sorted by ticket offset;
// ranges are contiguous and non-overlapping by construction, so exactly
// one entry matches any index below the total.
func FindWinner(entries []entity.RoomEntry, ticketIndex int64) (*entity.RoomEntry, error) {
	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].TicketOffset+entries[i].Tickets > ticketIndex
	})

	if i >= len(entries) || entries[i].TicketOffset > ticketIndex {
		return nil, fmt.Errorf("no entry owns ticket index %d", ticketIndex)
	}

	return &entries[i], nil
}

type Engine struct {
	entryRepo repository.RoomEntryRepository
	drawRepo  repository.LotteryDrawRepository
}

func NewEngine(
	entryRepo repository.RoomEntryRepository,
	drawRepo repository.LotteryDrawRepository,
) *Engine {
	return &Engine{entryRepo: entryRepo, drawRepo: drawRepo}
}

func (e *Engine) Get(ctx context.Context, roomID string) (*entity.LotteryDraw, error) {
	return e.drawRepo.GetByRoomID(ctx, roomID)
}

// Draw selects and persists the winner for a locked room. The caller holds
// the room row lock; the unique index on lottery_draws.room_id backstops a
// concurrent second draw regardless.
func (e *Engine) Draw(ctx context.Context, room *entity.Room, clientSeed string) (*entity.LotteryDraw, error) {
	if room.TotalTickets < 1 {
		return nil, fmt.Errorf("room %s has no tickets to draw over", room.ID)
	}

	const nonce = 1
	winning, digest, err := WinningTicket(room.ServerSeed, clientSeed, nonce, room.TotalTickets)
	if err != nil {
		return nil, err
	}

	entries, err := e.entryRepo.GetByRoomID(ctx, room.ID)
	if err != nil {
		return nil, err
	}

	winner, err := FindWinner(entries, winning-1)
	if err != nil {
		return nil, err
	}

	draw := &entity.LotteryDraw{
		Base:                entity.Base{ID: uuid.NewString()},
		RoomID:              room.ID,
		WinnerEntryID:       winner.ID,
		WinningTicketNumber: winning,
		TotalTickets:        room.TotalTickets,
		SeedCommitment:      room.SeedCommitment,
		ServerSeed:          room.ServerSeed,
		ClientSeed:          clientSeed,
		Nonce:               nonce,
		VerificationHash:    digest,
		DrawnAt:             time.Now(),
	}

	if err := e.drawRepo.Create(ctx, draw); err != nil {
		return nil, err
	}

	return draw, nil
}

// ManualOverride records an admin-chosen winner. It writes the same draw
// row a fair draw would, flagged as an override and without revealing the
// server seed, so disputes stay distinguishable from fair draws forever.
func (e *Engine) ManualOverride(ctx context.Context, room *entity.Room, entryID string) (*entity.LotteryDraw, error) {
	winner, err := e.entryRepo.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	if winner.RoomID != room.ID {
		return nil, fmt.Errorf("entry %s does not belong to room %s", entryID, room.ID)
	}

	draw := &entity.LotteryDraw{
		Base:                entity.Base{ID: uuid.NewString()},
		RoomID:              room.ID,
		WinnerEntryID:       winner.ID,
		WinningTicketNumber: winner.TicketOffset + 1,
		TotalTickets:        room.TotalTickets,
		SeedCommitment:      room.SeedCommitment,
		Nonce:               1,
		IsManualOverride:    true,
		DrawnAt:             time.Now(),
	}

	if err := e.drawRepo.Create(ctx, draw); err != nil {
		return nil, err
	}

	return draw, nil
}

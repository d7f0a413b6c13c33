package testutil

import (
	"context"
	"reflect"
	"time"

	"github.com/dropvault/backend/internal/domain/fairdraw"
	"github.com/dropvault/backend/internal/entity"
	"github.com/dropvault/backend/internal/repository"
	"github.com/google/uuid"
)

// SampleRoom creates an OPEN room with randomized fields. Non-zero fields
// of init overwrite the sample before it is saved.
func SampleRoom(ctx context.Context, init *entity.Room) (entity.Room, error) {
	roomRepo := repository.NewRoomRepository()

	serverSeed, err := fairdraw.NewServerSeed()
	if err != nil {
		return entity.Room{}, err
	}

	now := time.Now()
	sample := &entity.Room{
		Base:              entity.Base{ID: uuid.NewString()},
		Tier:              entity.RoomTierT5,
		Status:            entity.RoomStatusOpen,
		StartAt:           now,
		EndAt:             now.Add(time.Hour),
		MinParticipants:   1,
		MaxParticipants:   100,
		EscrowTargetCents: 10000,
		TierCapCents:      1000000,
		SeedCommitment:    fairdraw.Commitment(serverSeed),
		ServerSeed:        serverSeed,
	}

	if init != nil {
		overwriteFields(sample, *init)
	}

	if err := roomRepo.Create(ctx, sample); err != nil {
		return *sample, err
	}

	return *sample, nil
}

// SampleEntry creates a pending entry in the given room and advances the
// room's ticket counter past its range.
func SampleEntry(ctx context.Context, room *entity.Room, init *entity.RoomEntry) (entity.RoomEntry, error) {
	entryRepo := repository.NewRoomEntryRepository()
	roomRepo := repository.NewRoomRepository()

	sample := &entity.RoomEntry{
		Base:           entity.Base{ID: uuid.NewString()},
		RoomID:         room.ID,
		UserID:         uuid.NewString(),
		AmountCents:    500,
		Tickets:        1,
		TicketOffset:   room.TotalTickets,
		Outcome:        entity.EntryOutcomePending,
		IdempotencyKey: uuid.NewString(),
		StakedAt:       time.Now(),
	}

	if init != nil {
		overwriteFields(sample, *init)
	}

	if err := entryRepo.Create(ctx, sample); err != nil {
		return *sample, err
	}

	err := roomRepo.TakeTicketRange(ctx, room.ID, sample.TicketOffset, sample.Tickets)
	if err != nil {
		return *sample, err
	}

	room.TotalTickets += sample.Tickets
	return *sample, nil
}

func overwriteFields[T any](origin *T, overwrite T) {
	originValue := reflect.ValueOf(origin).Elem()
	overwriteValue := reflect.ValueOf(overwrite)

	for i := 0; i < overwriteValue.NumField(); i++ {
		overwriteField := overwriteValue.Field(i)
		if overwriteField.Interface() != reflect.Zero(overwriteField.Type()).Interface() {
			originValue.Field(i).Set(overwriteField)
		}
	}
}

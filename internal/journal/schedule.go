package journal

import (
	"context"
	"fmt"
	"strconv"

	"github.com/carbsync/carbsync/internal/dosing"
	apperrors "github.com/carbsync/carbsync/internal/errors"
	"github.com/carbsync/carbsync/internal/models"
	"github.com/carbsync/carbsync/internal/state"
	"github.com/google/uuid"
)

func checkSchedule(c models.Collection) error {
	if c != models.CarbRatios && c != models.StartDoses {
		return fmt.Errorf("%w: %q is not a schedule", apperrors.ErrUnknownCollection, c)
	}

	return nil
}

// SetSlot sets the value of one hour slot of the carb ratio or start dose
// schedule.
func (j *Journal) SetSlot(ctx context.Context, c models.Collection, hour int, value float64) (models.ScheduleEntry, error) {
	if err := checkSchedule(c); err != nil {
		return models.ScheduleEntry{}, err
	}

	if hour < 0 || hour >= models.HoursPerDay {
		return models.ScheduleEntry{}, fmt.Errorf("%w: %d", apperrors.ErrInvalidHourSlot, hour)
	}

	slot, err := state.Get[models.ScheduleEntry](j.store, c, strconv.Itoa(hour))
	if err != nil {
		return models.ScheduleEntry{}, err
	}

	if slot == nil {
		slot = &models.ScheduleEntry{ID: uuid.New(), Hour: hour}
	}

	slot.Value = value
	slot.LastEdited = j.clock.Stamp(slot.LastEdited)

	if err := state.Put(j.store, c, *slot); err != nil {
		return *slot, fmt.Errorf("saving %s slot: %w", c, err)
	}

	j.export(ctx, c)

	return *slot, nil
}

// Slots returns the stored slots of a schedule in hour order.
func (j *Journal) Slots(c models.Collection) ([]models.ScheduleEntry, error) {
	if err := checkSchedule(c); err != nil {
		return nil, err
	}

	slots, err := state.All[models.ScheduleEntry](j.store, c)
	if err != nil {
		return nil, err
	}

	// Keys are decimal hours, so "10" sorts before "2".
	ordered := make([]models.ScheduleEntry, 0, len(slots))
	byHour := make(map[int]models.ScheduleEntry, len(slots))

	for _, s := range slots {
		byHour[s.Hour] = s
	}

	for h := range models.HoursPerDay {
		if s, ok := byHour[h]; ok {
			ordered = append(ordered, s)
		}
	}

	return ordered, nil
}

// Schedule returns a schedule for dose calculation.
func (j *Journal) Schedule(c models.Collection) (dosing.Schedule, error) {
	slots, err := j.Slots(c)
	if err != nil {
		return nil, err
	}

	return dosing.NewSchedule(slots)
}

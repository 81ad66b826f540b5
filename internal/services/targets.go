package services

import (
	"fmt"

	"github.com/pulsewatch/pulsewatch/internal/database"
	"github.com/pulsewatch/pulsewatch/internal/notify"
)

// TargetStore is the repository surface target resolution needs
type TargetStore interface {
	UserByID(id uint) (*database.User, error)
	ScheduleWithMembers(id uint) (*database.OnCallSchedule, error)
	TeamWithMembers(id uint) (*database.Team, error)
}

// ResolveTarget resolves one escalation target into its notification
// recipients. The target kinds form a closed variant set, each with its own
// resolution function; adding a new kind is a localized change here.
func ResolveTarget(store TargetStore, target database.EscalationTarget) ([]notify.Recipient, error) {
	switch target.Kind {
	case database.TargetKindUser:
		return resolveUser(store, target.TargetID)
	case database.TargetKindSchedule:
		return resolveSchedule(store, target.TargetID)
	case database.TargetKindTeam:
		return resolveTeam(store, target.TargetID)
	default:
		return nil, fmt.Errorf("unsupported target kind: %s", target.Kind)
	}
}

// resolveUser resolves a direct user target to one recipient
func resolveUser(store TargetStore, userID uint) ([]notify.Recipient, error) {
	user, err := store.UserByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user %d: %w", userID, err)
	}
	if !user.Active {
		return nil, fmt.Errorf("user %d is inactive", userID)
	}
	return []notify.Recipient{recipientFor(user, "")}, nil
}

// resolveSchedule resolves an on-call rotation to whoever is currently on
// duty. On-duty is the first member of the rotation's ordered list; shift
// windows are not modeled yet.
func resolveSchedule(store TargetStore, scheduleID uint) ([]notify.Recipient, error) {
	schedule, err := store.ScheduleWithMembers(scheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve schedule %d: %w", scheduleID, err)
	}
	if len(schedule.Members) == 0 {
		return nil, fmt.Errorf("schedule %d (%s) has no members", scheduleID, schedule.Name)
	}

	onDuty := schedule.Members[0].User
	return []notify.Recipient{recipientFor(&onDuty, schedule.Name)}, nil
}

// resolveTeam resolves a team target to all of its active members, each an
// independent notification recipient.
func resolveTeam(store TargetStore, teamID uint) ([]notify.Recipient, error) {
	team, err := store.TeamWithMembers(teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve team %d: %w", teamID, err)
	}

	var recipients []notify.Recipient
	for _, member := range team.Members {
		if !member.Active || !member.User.Active {
			continue
		}
		recipients = append(recipients, recipientFor(&member.User, ""))
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("team %d (%s) has no active members", teamID, team.Name)
	}
	return recipients, nil
}

// recipientFor builds a recipient, decorating the name with the on-call
// schedule when resolved through a rotation.
func recipientFor(user *database.User, scheduleName string) notify.Recipient {
	name := user.Name
	if scheduleName != "" {
		name = fmt.Sprintf("%s (on-call: %s)", user.Name, scheduleName)
	}
	return notify.Recipient{
		Name:  name,
		Email: user.Email,
		Phone: user.Phone,
	}
}

package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"consultassist/pkg/ai"
	"consultassist/pkg/booking"
	"consultassist/pkg/mail"
)

// toolSchemas declares every function the oracle may call, with the argument
// names the prompt teaches it to use.
func toolSchemas() []ai.Tool {
	return []ai.Tool{
		ai.NewFunctionTool("check_availability",
			"Check if any consultants are available for a given service and start time. Use this before booking.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"service_name":           map[string]any{"type": "string", "description": "The name of the service, e.g., 'Technology', 'Sales', 'Financial', 'Legal'."},
					"requested_datetime_str": map[string]any{"type": "string", "description": "The requested date and time in 'YYYY-MM-DD HH:MM:SS' format."},
				},
				"required": []string{"service_name", "requested_datetime_str"},
			}),
		ai.NewFunctionTool("book_appointment",
			"Books an appointment. The user's name, email, service ID, and datetime must be known.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"user_name":     map[string]any{"type": "string", "description": "The user's full name."},
					"user_email":    map[string]any{"type": "string", "description": "The user's email address."},
					"appt_datetime": map[string]any{"type": "string", "description": "The requested date and time in 'YYYY-MM-DD HH:MM:SS' format."},
					"service_id":    map[string]any{"type": "integer", "description": "The ID of the service to book (1=Technology, 2=Sales, 3=Financial, 4=Legal)."},
				},
				"required": []string{"user_name", "user_email", "appt_datetime", "service_id"},
			}),
		ai.NewFunctionTool("find_next_available_slot",
			"If a user's requested time is unavailable, use this to find the *next* open slot.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"service_name":       map[string]any{"type": "string", "description": "The name of the service, e.g., 'Technology'"},
					"start_datetime_str": map[string]any{"type": "string", "description": "The user's *original* requested date and time in 'YYYY-MM-DD HH:MM:SS' format."},
				},
				"required": []string{"service_name", "start_datetime_str"},
			}),
		ai.NewFunctionTool("get_user_appointments",
			"Fetches a list of all *active* appointments for a user, based on their email. Use this before any cancel or reschedule attempt.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"user_email": map[string]any{"type": "string", "description": "The user's email address to search for."},
				},
				"required": []string{"user_email"},
			}),
		ai.NewFunctionTool("cancel_appointment",
			"Cancels an active appointment using its unique ID and the user's email.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"appointment_id": map[string]any{"type": "integer", "description": "The unique ID of the appointment to cancel."},
					"user_email":     map[string]any{"type": "string", "description": "The user's email, for verification."},
				},
				"required": []string{"appointment_id", "user_email"},
			}),
		ai.NewFunctionTool("reschedule_appointment",
			"Reschedules an existing appointment to a new date and time.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"appointment_id":    map[string]any{"type": "integer", "description": "The ID of the appointment to reschedule."},
					"user_email":        map[string]any{"type": "string", "description": "The user's email, for verification."},
					"new_appt_datetime": map[string]any{"type": "string", "description": "The *new* desired date and time in 'YYYY-MM-DD HH:MM:SS' format."},
				},
				"required": []string{"appointment_id", "user_email", "new_appt_datetime"},
			}),
		ai.NewFunctionTool("modify_appointment_service",
			"Modifies the service (e.g., from 'Technology' to 'Legal') for an existing appointment.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"appointment_id": map[string]any{"type": "integer", "description": "The ID of the appointment to modify."},
					"user_email":     map[string]any{"type": "string", "description": "The user's email, for verification."},
					"new_service_id": map[string]any{"type": "integer", "description": "The ID of the *new* service (1=Technology, 2=Sales, 3=Financial, 4=Legal)."},
				},
				"required": []string{"appointment_id", "user_email", "new_service_id"},
			}),
	}
}

type checkAvailabilityArgs struct {
	ServiceName          string `json:"service_name"`
	RequestedDatetimeStr string `json:"requested_datetime_str"`
}

type bookAppointmentArgs struct {
	UserName     string `json:"user_name"`
	UserEmail    string `json:"user_email"`
	ApptDatetime string `json:"appt_datetime"`
	ServiceID    int64  `json:"service_id"`
}

type findNextSlotArgs struct {
	ServiceName      string `json:"service_name"`
	StartDatetimeStr string `json:"start_datetime_str"`
}

type getUserAppointmentsArgs struct {
	UserEmail string `json:"user_email"`
}

type cancelAppointmentArgs struct {
	AppointmentID int64  `json:"appointment_id"`
	UserEmail     string `json:"user_email"`
}

type rescheduleAppointmentArgs struct {
	AppointmentID   int64  `json:"appointment_id"`
	UserEmail       string `json:"user_email"`
	NewApptDatetime string `json:"new_appt_datetime"`
}

type modifyServiceArgs struct {
	AppointmentID int64  `json:"appointment_id"`
	UserEmail     string `json:"user_email"`
	NewServiceID  int64  `json:"new_service_id"`
}

// toolOutcome is one executed tool call. text is what the oracle sees; the
// other fields drive the email side-channel and session state updates.
type toolOutcome struct {
	text          string
	action        mail.Action
	appointmentID int64
	consultantID  int64
	argEmail      string
}

// executeTool dispatches one oracle tool call. Failures are reported as text
// for the oracle to relay; nothing here returns an error to the loop.
func (a *App) executeTool(call ai.ToolCall) toolOutcome {
	slog.Info("executing tool", "tool", call.Function.Name, "args", call.Function.Arguments)
	switch call.Function.Name {
	case "check_availability":
		var args checkAvailabilityArgs
		if err := call.UnmarshalArguments(&args); err != nil {
			return internalError(err)
		}
		free := a.engine.CheckAvailability(args.ServiceName, args.RequestedDatetimeStr)
		return toolOutcome{text: marshalResult(free)}

	case "book_appointment":
		var args bookAppointmentArgs
		if err := call.UnmarshalArguments(&args); err != nil {
			return internalError(err)
		}
		svc, ok, err := a.store.GetServiceByID(args.ServiceID)
		if err != nil {
			return internalError(err)
		}
		if !ok {
			return toolOutcome{text: fmt.Sprintf("Booking failed: No service found with ID %d.", args.ServiceID)}
		}
		id, consultant, err := a.booking.Book(args.UserName, args.UserEmail, svc.Name, args.ApptDatetime)
		switch {
		case errors.Is(err, booking.ErrSlotUnavailable):
			return toolOutcome{text: fmt.Sprintf("Booking failed: No consultants available for %s at %s.", svc.Name, args.ApptDatetime)}
		case errors.Is(err, booking.ErrConflict):
			return toolOutcome{text: "Booking failed: This slot is already booked."}
		case err != nil:
			return internalError(err)
		}
		return toolOutcome{
			text:          fmt.Sprintf("Booking successful. New appointment ID: %d", id),
			action:        mail.ActionBooked,
			appointmentID: id,
			consultantID:  consultant.ID,
			argEmail:      args.UserEmail,
		}

	case "find_next_available_slot":
		var args findNextSlotArgs
		if err := call.UnmarshalArguments(&args); err != nil {
			return internalError(err)
		}
		slot, consultant, ok := a.engine.FindNextSlot(args.ServiceName, args.StartDatetimeStr)
		if !ok {
			return toolOutcome{text: "No available slots found within the next 7 days."}
		}
		return toolOutcome{text: fmt.Sprintf("Next available slot: %s with %s.", slot, consultant.Name)}

	case "get_user_appointments":
		var args getUserAppointmentsArgs
		if err := call.UnmarshalArguments(&args); err != nil {
			return internalError(err)
		}
		appts, err := a.booking.UserAppointments(args.UserEmail)
		if err != nil {
			return internalError(err)
		}
		return toolOutcome{text: marshalResult(appts)}

	case "cancel_appointment":
		var args cancelAppointmentArgs
		if err := call.UnmarshalArguments(&args); err != nil {
			return internalError(err)
		}
		err := a.booking.Cancel(args.AppointmentID, args.UserEmail)
		switch {
		case errors.Is(err, booking.ErrNotFound):
			return toolOutcome{text: "Cancellation failed: No active appointment found for that ID and email."}
		case err != nil:
			return internalError(err)
		}
		return toolOutcome{
			text:          "Cancel appointment successful.",
			action:        mail.ActionCancelled,
			appointmentID: args.AppointmentID,
			argEmail:      args.UserEmail,
		}

	case "reschedule_appointment":
		var args rescheduleAppointmentArgs
		if err := call.UnmarshalArguments(&args); err != nil {
			return internalError(err)
		}
		consultant, err := a.booking.Reschedule(args.AppointmentID, args.UserEmail, args.NewApptDatetime)
		switch {
		case errors.Is(err, booking.ErrNotFound):
			return toolOutcome{text: "Reschedule failed: No active appointment found for that ID and email."}
		case errors.Is(err, booking.ErrSlotUnavailable):
			return toolOutcome{text: fmt.Sprintf("Reschedule failed: No consultants available for %s at %s.",
				a.serviceNameFor(args.AppointmentID), args.NewApptDatetime)}
		case errors.Is(err, booking.ErrConflict):
			return toolOutcome{text: "Reschedule failed: The new slot is already booked."}
		case err != nil:
			return internalError(err)
		}
		return toolOutcome{
			text:          "Reschedule appointment successful.",
			action:        mail.ActionRescheduled,
			appointmentID: args.AppointmentID,
			consultantID:  consultant.ID,
			argEmail:      args.UserEmail,
		}

	case "modify_appointment_service":
		var args modifyServiceArgs
		if err := call.UnmarshalArguments(&args); err != nil {
			return internalError(err)
		}
		consultant, err := a.booking.ModifyService(args.AppointmentID, args.UserEmail, args.NewServiceID)
		switch {
		case errors.Is(err, booking.ErrNotFound):
			return toolOutcome{text: "Modify failed: No active appointment found for that ID and email."}
		case errors.Is(err, booking.ErrNoChange):
			return toolOutcome{text: "Modify failed: This appointment is already for that service."}
		case errors.Is(err, booking.ErrServiceNotFound):
			return toolOutcome{text: "Modify failed: Invalid new service ID."}
		case errors.Is(err, booking.ErrSlotUnavailable):
			name := "the requested service"
			if svc, ok, err := a.store.GetServiceByID(args.NewServiceID); err == nil && ok {
				name = svc.Name
			}
			return toolOutcome{text: fmt.Sprintf("Modify failed: No consultants available for %s at the appointment time.", name)}
		case errors.Is(err, booking.ErrConflict):
			return toolOutcome{text: "Modify failed: The new slot is already booked."}
		case err != nil:
			return internalError(err)
		}
		return toolOutcome{
			text:          "Modify appointment service successful.",
			action:        mail.ActionModified,
			appointmentID: args.AppointmentID,
			consultantID:  consultant.ID,
			argEmail:      args.UserEmail,
		}

	default:
		return toolOutcome{text: fmt.Sprintf("Error: Unknown tool '%s'.", call.Function.Name)}
	}
}

// serviceNameFor resolves the service of an appointment for error messages.
func (a *App) serviceNameFor(appointmentID int64) string {
	det, err := a.booking.Details(appointmentID, true)
	if err != nil || det.ServiceName == "" {
		return "the requested service"
	}
	return det.ServiceName
}

func marshalResult(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("An internal error occurred: %v", err)
	}
	return string(data)
}

func internalError(err error) toolOutcome {
	slog.Error("tool execution failed", "err", err)
	return toolOutcome{text: fmt.Sprintf("An internal error occurred: %v", err)}
}

// Command kiosk is a terminal front end for the reservation wizard. It walks
// the category/organization/branch/service/datetime steps against a running
// API server and submits the reservation at the end.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cheche-app/api/internal/booking"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8081", "API base URL")
	email := flag.String("email", "", "Login email")
	password := flag.String("password", "", "Login password")
	orgID := flag.String("org", "", "Pin the wizard to one organization ID")
	flag.Parse()

	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env")
	}
	if *email == "" {
		*email = os.Getenv("KIOSK_EMAIL")
	}
	if *password == "" {
		*password = os.Getenv("KIOSK_PASSWORD")
	}
	if *email == "" || *password == "" {
		log.Fatal("kiosk needs -email and -password (or KIOSK_EMAIL/KIOSK_PASSWORD)")
	}

	session := &booking.Session{BaseURL: *baseURL, Email: *email, Password: *password}
	client := booking.NewClient(*baseURL, session)

	ctx := context.Background()
	var ctrl *booking.Controller
	if *orgID != "" {
		id, err := uuid.Parse(*orgID)
		if err != nil {
			log.Fatalf("invalid -org: %v", err)
		}
		orgs, err := client.ListOrganizations(ctx, "")
		if err != nil {
			log.Fatalf("load organizations: %v", err)
		}
		var pinned *booking.Organization
		for i := range orgs {
			if orgs[i].ID == id {
				pinned = &orgs[i]
				break
			}
		}
		if pinned == nil {
			log.Fatalf("organization %s not found", id)
		}
		ctrl = booking.NewPinnedController(client, terminalNotifier{}, *pinned)
	} else {
		ctrl = booking.NewController(client, terminalNotifier{})
	}
	ctrl.Start(ctx)

	in := bufio.NewScanner(os.Stdin)
	for {
		printStep(ctrl)
		fmt.Print("> ")
		if !in.Scan() {
			return
		}
		line := strings.TrimSpace(in.Text())
		switch {
		case line == "q":
			return
		case line == "b":
			ctrl.Back()
		default:
			handleInput(ctx, ctrl, in, line)
		}
	}
}

type terminalNotifier struct{}

func (terminalNotifier) Notify(message string) {
	fmt.Printf("! %s\n", message)
}

func printStep(ctrl *booking.Controller) {
	fmt.Printf("\n[%s] (number to select, b back, q quit)\n", ctrl.Step())
	switch ctrl.Step() {
	case booking.StepCategory:
		for i, c := range ctrl.Categories() {
			fmt.Printf("  %d. %s\n", i+1, c.Name)
		}
	case booking.StepOrganization:
		for i, o := range ctrl.Organizations() {
			fmt.Printf("  %d. %s\n", i+1, o.Name)
		}
	case booking.StepBranch:
		for i, b := range ctrl.Branches() {
			fmt.Printf("  %d. %s (%s)\n", i+1, b.Name, b.Address)
		}
	case booking.StepService:
		for i, s := range ctrl.Services() {
			fmt.Printf("  %d. %s\n", i+1, s.Name)
		}
	case booking.StepDatetime:
		if ctrl.SelectedDate().IsZero() {
			fmt.Println("  enter a date as YYYY-MM-DD")
			return
		}
		fmt.Printf("  date: %s\n", ctrl.SelectedDate().Format("2006-01-02"))
		for i, s := range ctrl.TimeSlots() {
			note := fmt.Sprintf("%d left", s.RemainingSlots)
			if s.RemainingSlots == 0 {
				note = "full"
			}
			fmt.Printf("  %d. %s-%s (%s)\n", i+1, s.TimeFrom, s.TimeTo, note)
		}
	}
}

func handleInput(ctx context.Context, ctrl *booking.Controller, in *bufio.Scanner, line string) {
	switch ctrl.Step() {
	case booking.StepCategory:
		if c, ok := pick(ctrl.Categories(), line); ok {
			ctrl.SelectCategory(ctx, c.Name)
		}
	case booking.StepOrganization:
		if o, ok := pick(ctrl.Organizations(), line); ok {
			ctrl.SelectOrganization(ctx, o)
		}
	case booking.StepBranch:
		if b, ok := pick(ctrl.Branches(), line); ok {
			ctrl.SelectBranch(ctx, &b)
		}
	case booking.StepService:
		if s, ok := pick(ctrl.Services(), line); ok {
			ctrl.SelectService(ctx, s)
		}
	case booking.StepDatetime:
		if ctrl.SelectedDate().IsZero() {
			date, err := time.ParseInLocation("2006-01-02", line, time.Local)
			if err != nil {
				fmt.Println("! enter the date as YYYY-MM-DD")
				return
			}
			ctrl.SelectDate(ctx, date)
			if ctrl.SelectedDate().IsZero() {
				fmt.Println("! that date is in the past")
			}
			return
		}
		slot, ok := pick(ctrl.TimeSlots(), line)
		if !ok {
			return
		}
		ctrl.SelectTime(slot)
		if !ctrl.ConfirmPending() {
			fmt.Println("! that slot is full")
			return
		}
		confirm(ctx, ctrl, in)
	}
}

// pick resolves a 1-based menu choice.
func pick[T any](options []T, line string) (T, bool) {
	var zero T
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(options) {
		fmt.Println("! pick a listed number")
		return zero, false
	}
	return options[n-1], true
}

func confirm(ctx context.Context, ctrl *booking.Controller, in *bufio.Scanner) {
	cust := booking.Customer{PartySize: 1}
	cust.FirstName = prompt(in, "first name")
	cust.LastName = prompt(in, "last name")
	cust.Mobile = prompt(in, "mobile")
	if n, err := strconv.Atoi(prompt(in, "party size")); err == nil && n > 0 {
		cust.PartySize = int32(n)
	}

	res, err := ctrl.Confirm(ctx, cust)
	if err != nil {
		fmt.Printf("! reservation failed: %v\n", err)
		return
	}
	fmt.Printf("Reservation confirmed. Your code is %s\n", res.CNR)
}

func prompt(in *bufio.Scanner, label string) string {
	fmt.Printf("%s: ", label)
	if !in.Scan() {
		return ""
	}
	return strings.TrimSpace(in.Text())
}

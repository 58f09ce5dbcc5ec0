package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"relay/internal/auth"
	"relay/internal/domain"
	"relay/internal/dto"
	"relay/internal/sealedbox"
	"relay/pkg/relayclient"

	"github.com/google/uuid"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "register":
		err = runRegister(args)
	case "devices":
		err = runDevices(args)
	case "contact":
		err = runContact(args)
	case "drain":
		err = runDrain(args, false)
	case "drain-contact":
		err = runDrain(args, true)
	case "token":
		err = runToken(args)
	default:
		usage()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  register       Register a device (generates a key pair)")
	fmt.Fprintln(os.Stderr, "  devices        List a user's device keys")
	fmt.Fprintln(os.Stderr, "  contact        Send a contact request to a provider")
	fmt.Fprintln(os.Stderr, "  drain          Drain a device's inbox")
	fmt.Fprintln(os.Stderr, "  drain-contact  Drain a provider device's contact inbox")
	fmt.Fprintln(os.Stderr, "  token          Mint a dev bearer token")
	os.Exit(2)
}

func runRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	baseURL := fs.String("base-url", "http://localhost:8085", "relay base URL")
	userID := fs.String("user", "", "user id (generated when empty)")
	role := fs.String("role", "patient", "patient or provider")
	_ = fs.Parse(args)

	uid := *userID
	if uid == "" {
		uid = uuid.NewString()
	}

	pub, priv, err := sealedbox.GenerateKey()
	if err != nil {
		return err
	}
	prePub, _, err := sealedbox.GenerateKey()
	if err != nil {
		return err
	}

	c := relayclient.New(*baseURL, "")
	resp, err := c.RegisterDevice(context.Background(), dto.RegisterDeviceRequest{
		UserID:            uid,
		Role:              *role,
		IdentityPublicKey: pub,
		SignedPreKey:      prePub,
	})
	if err != nil {
		return err
	}

	return printJSON(map[string]string{
		"userId":     resp.UserID,
		"deviceId":   resp.DeviceID,
		"privateKey": base64.StdEncoding.EncodeToString(priv[:]),
	})
}

func runDevices(args []string) error {
	fs := flag.NewFlagSet("devices", flag.ExitOnError)
	baseURL := fs.String("base-url", "http://localhost:8085", "relay base URL")
	token := fs.String("token", "", "bearer token")
	userID := fs.String("user", "", "user id")
	_ = fs.Parse(args)

	resp, err := relayclient.New(*baseURL, *token).ListDevices(context.Background(), *userID)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func runContact(args []string) error {
	fs := flag.NewFlagSet("contact", flag.ExitOnError)
	baseURL := fs.String("base-url", "http://localhost:8085", "relay base URL")
	token := fs.String("token", "", "bearer token")
	provider := fs.String("provider", "", "provider user id")
	message := fs.String("message", "", "contact message")
	_ = fs.Parse(args)

	resp, err := relayclient.New(*baseURL, *token).DepositContact(context.Background(), dto.ContactDepositRequest{
		ProviderID: *provider,
		Message:    *message,
	})
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func runDrain(args []string, contact bool) error {
	fs := flag.NewFlagSet("drain", flag.ExitOnError)
	baseURL := fs.String("base-url", "http://localhost:8085", "relay base URL")
	token := fs.String("token", "", "bearer token")
	deviceID := fs.String("device", "", "device id")
	_ = fs.Parse(args)

	c := relayclient.New(*baseURL, *token)
	if contact {
		resp, err := c.DrainContactInbox(context.Background(), *deviceID)
		if err != nil {
			return err
		}
		return printJSON(resp)
	}
	resp, err := c.DrainInbox(context.Background(), *deviceID)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	secret := fs.String("secret", "dev-secret", "shared HS256 secret")
	issuer := fs.String("issuer", "", "token issuer")
	userID := fs.String("user", "", "user id")
	role := fs.String("role", "patient", "patient or provider")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	_ = fs.Parse(args)

	uid, err := uuid.Parse(*userID)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	tok, err := auth.NewSigner(*secret, *issuer).Mint(uid, domain.UserRole(*role), *ttl)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

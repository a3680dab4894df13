package main

import (
	"encoding/hex"
	"fmt"
	"log"
	"strings"

	"github.com/ebfe/scard"

	"github.com/SimplyPrint/jcstorage-demo/internal/jcstorage"
)

func main() {
	ctx, err := scard.EstablishContext()
	if err != nil {
		log.Fatal(err)
	}
	defer ctx.Release()

	readers, err := ctx.ListReaders()
	if err != nil {
		log.Fatal(err)
	}

	probed := 0
	for _, name := range readers {
		if strings.Contains(strings.ToUpper(name), "SAM") {
			continue
		}
		probed++
		probeReader(ctx, name)
	}
	if probed == 0 {
		log.Fatal("no PICC reader found")
	}
}

func probeReader(ctx *scard.Context, readerName string) {
	fmt.Printf("Connecting to: %s\n\n", readerName)

	card, err := ctx.Connect(readerName, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		fmt.Printf("  Failed to connect: %v\n\n", err)
		return
	}
	defer card.Disconnect(scard.ResetCard)

	if status, err := card.Status(); err == nil {
		fmt.Printf("ATR: %s\n", hex.EncodeToString(status.Atr))
	}

	fmt.Println("=== Testing GET UID ===")
	testCommand(card, "GET UID", []byte{0xFF, 0xCA, 0x00, 0x00, 0x00})

	fmt.Println("\n=== Testing GET FIRMWARE (ACS) ===")
	testCommand(card, "GET FIRMWARE", []byte{0xFF, 0x00, 0x48, 0x00, 0x00})

	aid := jcstorage.AID
	selectCmd := append([]byte{0x00, 0xA4, 0x04, 0x00, byte(len(aid))}, aid...)

	fmt.Println("\n=== Testing SELECT DL JC Storage (Le=16) ===")
	testCommand(card, "SELECT", append(append([]byte(nil), selectCmd...), 0x10))

	fmt.Println("\n=== Testing SELECT DL JC Storage (no Le) ===")
	testCommand(card, "SELECT no Le", selectCmd)

	fmt.Println("\n=== Testing SELECT master file ===")
	testCommand(card, "SELECT MF", []byte{0x00, 0xA4, 0x00, 0x00, 0x02, 0x3F, 0x00})
	fmt.Println()
}

func testCommand(card *scard.Card, name string, cmd []byte) {
	fmt.Printf("%s: %s\n", name, hex.EncodeToString(cmd))
	rsp, err := card.Transmit(cmd)
	if err != nil {
		fmt.Printf("  Error: %v\n", err)
		return
	}

	fmt.Printf("  Response (%d bytes): %s\n", len(rsp), hex.EncodeToString(rsp))
	if len(rsp) >= 2 {
		sw1 := rsp[len(rsp)-2]
		sw2 := rsp[len(rsp)-1]
		fmt.Printf("  Status: %02X %02X", sw1, sw2)
		if sw1 == 0x90 && sw2 == 0x00 {
			fmt.Printf(" (SUCCESS)")
		} else {
			fmt.Printf(" (FAILED)")
		}
		fmt.Println()
	}
}

package main

import (
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"Go2NetSentry/internal/sink"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/gobana/main.go <features.gob>")
		os.Exit(1)
	}
	gobFile := os.Args[1]

	batch, err := sink.ReadGobSnapshot(gobFile)
	if err != nil {
		log.Fatalf("Failed to read snapshot: %v", err)
	}

	fmt.Printf("Window %s: %d flows\n", batch.Timestamp.Format("2006-01-02 15:04:05"), len(batch.Vectors))
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FLOW\tDUR\tFWD\tBWD\tPKT/S\tBYTE/S\tSYN\tLABEL")
	for _, v := range batch.Vectors {
		fmt.Fprintf(tw, "%s\t%.4f\t%d\t%d\t%.2f\t%.2f\t%d\t%s\n",
			v.Flow, v.Duration, v.FwdPackets, v.BwdPackets, v.PacketRate, v.ByteRate, v.SYNCount, v.Label)
	}
	tw.Flush()
}

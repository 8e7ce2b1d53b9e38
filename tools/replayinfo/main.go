package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mikkokallio/goblin-tactics/internal/storage"
	"github.com/mikkokallio/goblin-tactics/pkg/api"
)

func main() {
	if len(os.Args) < 2 {
		printHelp()
		return
	}

	switch os.Args[1] {
	case "info":
		if len(os.Args) < 3 {
			fmt.Println("Usage: replayinfo info <file.gtrp> [file.gtrp ...]")
			return
		}
		for _, path := range os.Args[2:] {
			printInfo(path)
		}
	case "events":
		if len(os.Args) < 3 {
			fmt.Println("Usage: replayinfo events <file.gtrp>")
			return
		}
		if err := printEvents(os.Args[2]); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	case "ls":
		if len(os.Args) < 3 {
			fmt.Println("Usage: replayinfo ls <dir>")
			return
		}
		if err := printList(os.Args[2]); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	default:
		printHelp()
	}
}

// printInfo читает файл запись за записью, не требуя целого файла:
// оборванный хвост после аварийной остановки не прячет уже собранное.
func printInfo(path string) {
	r, err := storage.Open(path)
	if err != nil {
		fmt.Printf("%s: %v\n", path, err)
		return
	}
	defer r.Close()

	var (
		header    *api.BattleHeader
		result    *api.BattleResult
		turns     int
		decisions int
		truncated bool
	)
	for {
		rh, body, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			truncated = true
			break
		}
		switch rh.Kind {
		case storage.KindHeader:
			h := &api.BattleHeader{}
			if json.Unmarshal(body, h) == nil {
				header = h
			}
		case storage.KindDecision:
			decisions++
		case storage.KindTurn:
			turns++
		case storage.KindResult:
			res := &api.BattleResult{}
			if json.Unmarshal(body, res) == nil {
				result = res
			}
		}
	}

	fmt.Printf("=== %s ===\n", path)
	if header == nil {
		fmt.Println("No battle header")
		return
	}
	knights, goblins := 0, 0
	for _, u := range header.Units {
		if u.Faction == "KNIGHTS" {
			knights++
		} else {
			goblins++
		}
	}
	fmt.Printf("Seed:      %d\n", header.Seed)
	fmt.Printf("Map:       %dx%d\n", header.Width, header.Height)
	fmt.Printf("Units:     %d knights, %d goblins\n", knights, goblins)
	fmt.Printf("Turns:     %d\n", turns)
	fmt.Printf("Decisions: %d\n", decisions)
	switch {
	case result != nil:
		fmt.Printf("Outcome:   %s\n", result.Outcome)
	case truncated:
		fmt.Println("Outcome:   unknown (file is truncated)")
	default:
		fmt.Println("Outcome:   unknown (no result record)")
	}
}

func printEvents(path string) error {
	r, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	rec := &storage.Recording{}
	if err := r.Replay(rec); err != nil {
		return err
	}
	for _, frame := range rec.Turns {
		for _, ev := range frame.Events {
			fmt.Printf("turn %3d  %-12s actor=%d", frame.Turn, ev.Type, ev.Actor)
			if ev.Target != 0 {
				fmt.Printf(" target=%d", ev.Target)
			}
			if ev.Value != 0 {
				fmt.Printf(" value=%d", ev.Value)
			}
			fmt.Printf(" at (%d,%d)\n", ev.X, ev.Y)
		}
	}
	return nil
}

func printList(dir string) error {
	st := &storage.Store{Dir: dir}
	names, err := st.List()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Printf("No recordings in %s\n", dir)
		return nil
	}
	for _, name := range names {
		rec, err := st.Load(name)
		if err != nil {
			fmt.Printf("%s: %v\n", name, err)
			continue
		}
		if rec.Header == nil {
			fmt.Printf("%s: no battle header\n", name)
			continue
		}
		outcome := "unfinished"
		if rec.Result != nil {
			outcome = rec.Result.Outcome
		}
		fmt.Printf("%s  seed=%d turns=%d %s\n", name, rec.Header.Seed, len(rec.Turns), outcome)
	}
	return nil
}

func printHelp() {
	fmt.Println(`Replay Utility - осмотр файлов записей боёв
Commands:
  info <file> [file...]  - сводка по записи: зерно, карта, ходы, итог
  events <file>          - события записи ход за ходом
  ls <dir>               - список записей каталога с итогами`)
}

package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"github.com/sushant-115/sagakv/core/kv"
	"github.com/sushant-115/sagakv/core/txn"
	"github.com/sushant-115/sagakv/pkg/logger"
)

const helpText = `Commands:
  BEGIN                      Start a new transaction
  GET <key>                  Record a read
  INSERT <key> <value>       Record a strict insert
  UPSERT <key> <value>       Record an upsert
  REPLACE <key> <value>      Record a replace
  REMOVE <key>               Record a removal
  INCR <key> <delta>         Record a counter increment
  DECR <key> <delta>         Record a counter decrement
  TOUCH <key> <expiry>       Record an expiry update (seconds)
  UNLOCK <key> <cas>         Record an unlock
  QUERY <statement>          Record a query (e.g. QUERY SCAN user:)
  COMMIT                     Execute the recorded operations
  ROLLBACK                   Abandon the transaction
  PEEK <key>                 Read directly from the store, outside any transaction
  STATUS                     Show transaction state
  HELP                       Show this help
  EXIT                       Quit`

// session drives one interactive CLI session against a client.
type session struct {
	client       kv.Client
	current      *txn.Context
	autoRollback bool
	zlog         *zap.Logger
}

func (s *session) begin() {
	ctx, err := txn.Begin(s.client, txn.WithLogger(s.zlog))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	s.current = ctx
	fmt.Printf("Transaction %s started\n", ctx.ID())
}

// active returns the current transaction, complaining if there is none.
func (s *session) active() *txn.Context {
	if s.current == nil {
		fmt.Println("No transaction in progress; use BEGIN first")
		return nil
	}
	return s.current
}

func (s *session) printResult(res txn.Result) {
	if res.Success {
		fmt.Printf("OK: executed=%d rolled_back=%d\n", res.OperationsExecuted, res.OperationsRolledBack)
	} else {
		fmt.Printf("FAILED: executed=%d rolled_back=%d error=%s\n",
			res.OperationsExecuted, res.OperationsRolledBack, res.ErrorMessage)
	}
}

func (s *session) handle(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	cmd := strings.ToUpper(fields[0])
	args := fields[1:]

	record := func(n int, fn func() error) {
		if len(args) < n {
			fmt.Printf("%s needs %d argument(s); see HELP\n", cmd, n)
			return
		}
		if s.active() == nil {
			return
		}
		if err := fn(); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Printf("Recorded (%d operation(s) pending)\n", s.current.Len())
	}

	switch cmd {
	case "BEGIN":
		s.begin()
	case "GET":
		record(1, func() error { return s.current.AddGetOperation(args[0]) })
	case "INSERT":
		record(2, func() error {
			return s.current.AddInsertOperation(args[0], []byte(strings.Join(args[1:], " ")), kv.StoreOptions{})
		})
	case "UPSERT":
		record(2, func() error {
			return s.current.AddUpsertOperation(args[0], []byte(strings.Join(args[1:], " ")), kv.StoreOptions{})
		})
	case "REPLACE":
		record(2, func() error {
			return s.current.AddReplaceOperation(args[0], []byte(strings.Join(args[1:], " ")), kv.StoreOptions{})
		})
	case "REMOVE":
		record(1, func() error { return s.current.AddRemoveOperation(args[0], kv.RemoveOptions{}) })
	case "INCR", "DECR":
		record(2, func() error {
			delta, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("bad delta %q: %w", args[1], err)
			}
			if cmd == "INCR" {
				return s.current.AddIncrementOperation(args[0], delta, kv.CounterOptions{})
			}
			return s.current.AddDecrementOperation(args[0], delta, kv.CounterOptions{})
		})
	case "TOUCH":
		record(2, func() error {
			expiry, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("bad expiry %q: %w", args[1], err)
			}
			return s.current.AddTouchOperation(args[0], uint32(expiry))
		})
	case "UNLOCK":
		record(2, func() error {
			cas, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("bad cas %q: %w", args[1], err)
			}
			return s.current.AddUnlockOperation(args[0], kv.Cas(cas))
		})
	case "QUERY":
		record(1, func() error {
			return s.current.AddQueryOperation(strings.Join(args, " "), kv.QueryOptions{})
		})
	case "COMMIT":
		if s.active() == nil {
			return true
		}
		res := s.current.Commit(txn.Config{AutoRollback: s.autoRollback})
		s.printResult(res)
		s.current = nil
	case "ROLLBACK":
		if s.active() == nil {
			return true
		}
		s.printResult(s.current.Rollback())
		s.current = nil
	case "PEEK":
		if len(args) < 1 {
			fmt.Println("PEEK needs a key; see HELP")
			return true
		}
		res, err := s.client.Get(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return true
		}
		fmt.Printf("cas=%d value=%s\n", res.Cas, res.Value)
	case "STATUS":
		if s.current == nil {
			fmt.Println("No transaction in progress")
		} else {
			fmt.Printf("Transaction %s: state=%s operations=%d\n",
				s.current.ID(), s.current.State(), s.current.Len())
		}
	case "HELP":
		fmt.Println(helpText)
	case "EXIT", "QUIT":
		return false
	default:
		fmt.Printf("Unknown command %q; see HELP\n", cmd)
	}
	return true
}

func main() {
	addr := flag.String("addr", "", "Server address (host:port); empty runs against an in-process store")
	autoRollback := flag.Bool("auto-rollback", true, "Roll back completed operations when a commit fails mid-way")
	rps := flag.Float64("rps", 0, "Throttle outgoing requests per second (0 = unlimited)")
	logLevel := flag.String("log-level", "warn", "Minimum log level")
	flag.Parse()

	zlog, err := logger.New(logger.Config{Level: *logLevel, Format: "console", OutputFile: "stderr"})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	var client kv.Client
	if *addr == "" {
		fmt.Println("Using in-process memory store")
		client = kv.NewMemory()
	} else {
		remote := kv.NewRemote(kv.RemoteConfig{
			Address:           *addr,
			RequestTimeout:    10 * time.Second,
			RequestsPerSecond: *rps,
		}, zlog)
		defer remote.Close()
		client = remote
		fmt.Printf("Connected to %s\n", *addr)
	}

	rl, err := readline.New("sagakv> ")
	if err != nil {
		log.Fatalf("Failed to initialize readline: %v", err)
	}
	defer rl.Close()

	fmt.Println("Type HELP for the command list.")
	sess := &session{client: client, autoRollback: *autoRollback, zlog: zlog}
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			log.Fatalf("Read error: %v", err)
		}
		if !sess.handle(line) {
			return
		}
	}
}

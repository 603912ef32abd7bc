package repository

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Gopher0727/ChatSync/internal/session"
	"github.com/Gopher0727/ChatSync/internal/store"
)

// reactionOp is one step of a generated add/remove sequence.
type reactionOp struct {
	Add  bool
	User int
	Type int
}

var reactionTypes = []string{"like", "love", "wow"}

func TestProperty_AggregateConsistency(t *testing.T) {
	properties := gopter.NewProperties(nil)

	opGen := gen.Struct(reflect.TypeOf(reactionOp{}), map[string]gopter.Gen{
		"Add":  gen.Bool(),
		"User": gen.IntRange(0, 4),
		"Type": gen.IntRange(0, len(reactionTypes)-1),
	})

	properties.Property("tallies match the live reactions after any op sequence", prop.ForAll(
		func(ops []reactionOp) bool {
			repo := newTestRepo(t)
			defer repo.DB().Close()
			ctx := context.Background()
			saveChannel(t, repo, "messaging:prop")
			if err := repo.SaveMessage(ctx, nil, messagePayload("m-prop", "messaging:prop", "x", baseTime)); err != nil {
				return false
			}

			// Reference bookkeeping: live score per "user|type".
			ref := map[string]int{}
			for i, op := range ops {
				userID := fmt.Sprintf("user%d", op.User)
				typ := reactionTypes[op.Type]
				at := baseTime.Add(time.Duration(i) * time.Second)
				if op.Add {
					p := reactionPayload("m-prop", userID, typ, 1, at)
					if err := repo.AddReaction(ctx, session.New(userID), p, false); err != nil {
						return false
					}
					ref[userID+"|"+typ] = 1
				} else {
					if err := repo.RemoveReaction(ctx, nil, "m-prop", userID, typ, ""); err != nil {
						return false
					}
					delete(ref, userID+"|"+typ)
				}
			}

			wantSum := map[string]int{}
			wantCount := map[string]int{}
			for key, score := range ref {
				_, typ, _ := strings.Cut(key, "|")
				wantSum[typ] += score
				wantCount[typ]++
			}

			ok := true
			_ = repo.DB().View(func(tx *store.ReadTx) error {
				m := tx.Message("m-prop")
				for _, typ := range reactionTypes {
					g, exists := m.ReactionGroups[typ]
					if wantCount[typ] == 0 {
						if exists {
							ok = false
						}
						continue
					}
					if !exists || g.Count != wantCount[typ] || g.SumScore != wantSum[typ] {
						ok = false
					}
				}
				if len(m.LatestReactions) != len(ref) {
					ok = false
				}
				return nil
			})
			return ok
		},
		gen.SliceOf(opGen),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

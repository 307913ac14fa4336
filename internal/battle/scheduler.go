package battle

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"spacecombat/internal/cache"
	"spacecombat/internal/locker"
	"spacecombat/internal/model"
	"spacecombat/pkg/background"
	"spacecombat/pkg/logger"
)

// Scheduler :
// Periodic driver over the Battle Cache. On each tick it
// snapshots every active battle and, for each one, fires every
// weapon ready at `now` and resolves the battle if either
// participant's hull reached zero. No lock is held across a
// battle's whole turn: each cache call made along the way
// acquires BATTLE (and any higher level it needs) for its own
// duration only, so other tasks can reach the same battle
// between two of those calls.
type Scheduler struct {
	engine   *Engine
	battles  *cache.BattleCache
	users    *cache.UserCache
	messages *cache.MessageCache
	world    *cache.WorldCache
	locks    *locker.Manager
	log      logger.Logger
	now      cache.TimeProvider
	rng      *rand.Rand

	config  configuration
	process *background.Process
}

// NewScheduler :
// Creates a scheduler driving `engine` over `battles`,
// notifying through `messages` and teleporting losers through
// `world`.
func NewScheduler(engine *Engine, battles *cache.BattleCache, users *cache.UserCache, messages *cache.MessageCache, world *cache.WorldCache, locks *locker.Manager, log logger.Logger, now cache.TimeProvider) *Scheduler {
	return &Scheduler{
		engine:   engine,
		battles:  battles,
		users:    users,
		messages: messages,
		world:    world,
		locks:    locks,
		log:      log,
		now:      now,
		rng:      rand.New(rand.NewSource(1)),
		config:   parseConfiguration(),
	}
}

// Tick :
// Runs exactly one scheduling pass over every active battle.
// Idempotent against an empty active set.
func (s *Scheduler) Tick(ctx context.Context) error {
	active, err := s.battles.GetActive(ctx)
	if err != nil {
		return err
	}

	now := s.now()

	for i := range active {
		battle := active[i]
		if err := s.tickOne(ctx, &battle, now); err != nil {
			if s.log != nil {
				s.log.Trace(logger.Error, "battle-scheduler", fmt.Sprintf("tick failed for battle %s: %v", battle.ID, err))
			}
		}
	}

	return nil
}

// tickOne drives a single battle through as many ready shots as
// `battleMaxIterationsForResolution` allows in one tick, and
// resolves it if it ends up over.
func (s *Scheduler) tickOne(ctx context.Context, battle *model.Battle, now int64) error {
	for i := 0; i < s.config.battleMaxIterationsForResolution; i++ {
		outcome, err := s.engine.ExecuteTurn(ctx, battle, now)
		if err != nil {
			return err
		}
		if outcome == nil {
			break
		}

		if err := s.notifyShot(ctx, battle, outcome); err != nil {
			return err
		}

		over, err := s.engine.IsOver(ctx, battle)
		if err != nil {
			return err
		}
		if over {
			winnerID, loserID, err := s.engine.Outcome(ctx, battle)
			if err != nil {
				return err
			}
			return s.resolveBattle(ctx, battle.ID, winnerID, loserID)
		}
	}

	return nil
}

// notifyShot sends a human-readable notification to both
// participants describing the shot just fired.
func (s *Scheduler) notifyShot(ctx context.Context, battle *model.Battle, outcome *ShotOutcome) error {
	attackerID := battle.UserIDFor(outcome.Shooter)
	defenderID := battle.UserIDFor(outcome.Shooter.Opponent())

	if outcome.Damage.Hits == 0 {
		miss := fmt.Sprintf("%syour %s missed", model.ChannelPersonalNegative, outcome.WeaponKey)
		if _, err := s.messages.CreateMessage(ctx, attackerID, miss); err != nil {
			return err
		}
		enemyMiss := fmt.Sprintf("%senemy %s missed", model.ChannelPersonalPositive, outcome.WeaponKey)
		if _, err := s.messages.CreateMessage(ctx, defenderID, enemyMiss); err != nil {
			return err
		}
		return nil
	}

	toAttacker := fmt.Sprintf(
		"%syou fired %s for %d damage (enemy hull %d, armor %d, shield %d)",
		model.ChannelPersonalPositive, outcome.WeaponKey, outcome.Damage.Total(),
		outcome.DefenderHull, outcome.DefenderArmor, outcome.DefenderShield,
	)
	if _, err := s.messages.CreateMessage(ctx, attackerID, toAttacker); err != nil {
		return err
	}

	toDefender := fmt.Sprintf(
		"%senemy fired %s for %d damage (your hull %d, armor %d, shield %d)",
		model.ChannelPersonalNegative, outcome.WeaponKey, outcome.Damage.Total(),
		outcome.DefenderHull, outcome.DefenderArmor, outcome.DefenderShield,
	)
	if _, err := s.messages.CreateMessage(ctx, defenderID, toDefender); err != nil {
		return err
	}

	return nil
}

// resolveBattle snapshots end stats, ends the battle in the
// Battle Cache, teleports the loser's ship away from the
// winner, and notifies both participants of the outcome.
func (s *Scheduler) resolveBattle(ctx context.Context, battleID, winnerID, loserID uuid.UUID) error {
	winner, err := s.users.GetByID(ctx, winnerID)
	if err != nil {
		return err
	}
	loser, err := s.users.GetByID(ctx, loserID)
	if err != nil {
		return err
	}

	winnerEnd := model.SnapshotStats(&winner)
	loserEnd := model.SnapshotStats(&loser)

	battle, err := s.battles.LoadIfNeeded(ctx, battleID)
	if err != nil {
		return err
	}

	var attackerEnd, attackeeEnd model.BattleStats
	if battle.AttackerID == winnerID {
		attackerEnd, attackeeEnd = winnerEnd, loserEnd
	} else {
		attackerEnd, attackeeEnd = loserEnd, winnerEnd
	}

	if err := s.battles.UpdateStats(ctx, battleID, attackerEnd, attackeeEnd); err != nil {
		return err
	}
	if err := s.battles.AddEvent(ctx, battleID, model.BattleEvent{Timestamp: s.now(), Type: model.EventBattleEnded}); err != nil {
		return err
	}
	if err := s.battles.End(ctx, battleID, winnerID, loserID, s.users, s.world); err != nil {
		return err
	}

	if err := s.teleportLoser(ctx, winner.Username, loser.Username); err != nil {
		return err
	}

	victory := fmt.Sprintf("%syou won the battle", model.ChannelPersonalPositive)
	defeat := fmt.Sprintf("%syou lost the battle", model.ChannelPersonalNegative)
	if _, err := s.messages.CreateMessage(ctx, winnerID, victory); err != nil {
		return err
	}
	if _, err := s.messages.CreateMessage(ctx, loserID, defeat); err != nil {
		return err
	}

	return nil
}

// teleportLoser moves the loser's ship to a random position at
// least `teleportMinDistance` away from the winner's ship
// (toroidal distance), up to 100 rejection-sampled attempts,
// falling back to the toroidally-opposite point. Sets the
// loser's ship speed to zero.
func (s *Scheduler) teleportLoser(ctx context.Context, winnerUsername, loserUsername string) error {
	winnerShip, err := s.world.GetObjectByUsername(ctx, winnerUsername)
	if err != nil {
		return err
	}
	loserShip, err := s.world.GetObjectByUsername(ctx, loserUsername)
	if err != nil {
		return err
	}

	width, height := s.config.worldWidth, s.config.worldHeight

	var x, y float64
	found := false
	for attempt := 0; attempt < 100; attempt++ {
		x = s.rng.Float64() * width
		y = s.rng.Float64() * height
		if model.ToroidalDistance(x, y, winnerShip.X, winnerShip.Y, width, height) >= s.config.teleportMinDistance {
			found = true
			break
		}
	}
	if !found {
		x = fmod(winnerShip.X+width/2, width)
		y = fmod(winnerShip.Y+height/2, height)
	}

	return s.world.Teleport(ctx, loserShip.ID, x, y, 0)
}

func fmod(v, m float64) float64 {
	for v < 0 {
		v += m
	}
	for v >= m {
		v -= m
	}
	return v
}

// Start :
// Starts the periodic tick timer.
func (s *Scheduler) Start() error {
	s.process = background.NewProcess(s.config.tickInterval, s.log).
		WithModule("battle-scheduler").
		WithOperation(func() (bool, error) {
			err := s.Tick(locker.WithHeld(context.Background()))
			return err == nil, err
		})

	return s.process.Start()
}

// Stop :
// Stops the tick timer cooperatively, waiting for the in-flight
// tick (if any) to complete before returning.
func (s *Scheduler) Stop() {
	if s.process != nil {
		s.process.Stop()
	}
}

package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"spacecombat/internal/model"
	"spacecombat/pkg/db"
)

// PGStore :
// `Store` implementation backed by a real Postgres connection,
// grounded on the teacher's `pkg/db.DB`/`internal/data` proxy
// pattern. Unlike the teacher's proxies (which build queries by
// interpolating values as quoted strings through `db.Filter`),
// every statement issued here is parameterized through
// `pkg/db.DB.DBQuery`/`DBExecute`'s variadic `args`, which pgx
// binds positionally — user-controlled values (usernames,
// message text, ...) never touch the query string itself.
//
// JSON columns (`tech_tree`, `build_queue`, `inventory`, the
// cooldown/stats/log columns on `battles`) are marshalled with
// the standard library `encoding/json`, exactly as the
// teacher's `common_proxy.InsertToDB` does for its script
// arguments.
type PGStore struct {
	dbase *db.DB
}

// NewPGStore :
// Creates a new `PGStore` wrapping `dbase`. Panics if `dbase`
// is `nil`, matching the teacher's proxy constructors.
func NewPGStore(dbase *db.DB) *PGStore {
	if dbase == nil {
		panic(fmt.Errorf("cannot create store from invalid DB"))
	}

	return &PGStore{dbase: dbase}
}

// userRow mirrors the `users` table's columns for marshalling
// purposes, keeping `model.User`'s in-memory representation
// (maps, pointers) decoupled from the column layout.
type userRow struct {
	techTree   []byte
	buildQueue []byte
	inventory  []byte
}

func marshalUser(u model.User) (userRow, error) {
	techTree, err := json.Marshal(u.TechTree)
	if err != nil {
		return userRow{}, err
	}

	buildQueue, err := json.Marshal(u.BuildQueue)
	if err != nil {
		return userRow{}, err
	}

	inventory, err := json.Marshal(u.Inventory)
	if err != nil {
		return userRow{}, err
	}

	return userRow{techTree: techTree, buildQueue: buildQueue, inventory: inventory}, nil
}

const userColumns = `id, username, password_hash, iron, xp, last_updated, tech_tree, ship_id,
	pulse_laser, auto_turret, plasma_lance, gauss_rifle, photon_torpedo, rocket_launcher,
	ship_hull, kinetic_armor, energy_shield, missile_jammer,
	hull_current, armor_current, shield_current, defense_last_regen,
	in_battle, current_battle_id, build_queue, inventory`

// scanUser reads one row shaped like `userColumns` from `rows`
// into a `model.User`.
func scanUser(rows pgxRows) (model.User, error) {
	var u model.User
	var shipID *uuid.UUID
	var currentBattleID *uuid.UUID
	var techTree, buildQueue, inventory []byte
	techCounts := make(map[string]int, len(model.WeaponKeys)+len(model.DefenseKeys)+1)

	var pulseLaser, autoTurret, plasmaLance, gaussRifle, photonTorpedo, rocketLauncher int
	var shipHull, kineticArmor, energyShield, missileJammer int

	err := rows.Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.Iron, &u.XP, &u.LastUpdated, &techTree, &shipID,
		&pulseLaser, &autoTurret, &plasmaLance, &gaussRifle, &photonTorpedo, &rocketLauncher,
		&shipHull, &kineticArmor, &energyShield, &missileJammer,
		&u.HullCurrent, &u.ArmorCurrent, &u.ShieldCurrent, &u.DefenseLastRegen,
		&u.InBattle, &currentBattleID, &buildQueue, &inventory,
	)
	if err != nil {
		return model.User{}, err
	}

	techCounts["pulse_laser"] = pulseLaser
	techCounts["auto_turret"] = autoTurret
	techCounts["plasma_lance"] = plasmaLance
	techCounts["gauss_rifle"] = gaussRifle
	techCounts["photon_torpedo"] = photonTorpedo
	techCounts["rocket_launcher"] = rocketLauncher
	techCounts["ship_hull"] = shipHull
	techCounts["kinetic_armor"] = kineticArmor
	techCounts["energy_shield"] = energyShield
	techCounts["missile_jammer"] = missileJammer
	u.TechCounts = techCounts
	u.ShipID = shipID
	u.CurrentBattleID = currentBattleID

	if len(techTree) > 0 {
		if err := json.Unmarshal(techTree, &u.TechTree); err != nil {
			return model.User{}, err
		}
	}
	if len(buildQueue) > 0 {
		if err := json.Unmarshal(buildQueue, &u.BuildQueue); err != nil {
			return model.User{}, err
		}
	}
	if len(inventory) > 0 {
		if err := json.Unmarshal(inventory, &u.Inventory); err != nil {
			return model.User{}, err
		}
	}

	return u, nil
}

// pgxRows is the single method `scanUser`/`scanBattle` need from
// a query result, so this file does not import `pgx` itself; the
// `*pgx.Rows` returned by `pkg/db.DB.DBQuery` satisfies it.
type pgxRows = interface {
	Scan(dest ...interface{}) error
}

// GetUser :
// Implementation of the `Store` interface.
func (s *PGStore) GetUser(ctx context.Context, id uuid.UUID) (model.User, error) {
	query := fmt.Sprintf("select %s from users where id = $1", userColumns)

	rows, err := s.dbase.DBQuery(query, id.String())
	if err != nil {
		return model.User{}, fmt.Errorf("fetching user %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return model.User{}, fmt.Errorf("user %s: %w", id, model.ErrNotFound)
	}

	return scanUser(rows)
}

// GetUserByUsername :
// Implementation of the `Store` interface.
func (s *PGStore) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	query := fmt.Sprintf("select %s from users where username = $1", userColumns)

	rows, err := s.dbase.DBQuery(query, username)
	if err != nil {
		return model.User{}, fmt.Errorf("fetching user %q: %w", username, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return model.User{}, fmt.Errorf("user %q: %w", username, model.ErrNotFound)
	}

	return scanUser(rows)
}

// InsertUser :
// Implementation of the `Store` interface.
func (s *PGStore) InsertUser(ctx context.Context, user model.User) error {
	row, err := marshalUser(user)
	if err != nil {
		return fmt.Errorf("marshalling user %s: %w", user.ID, err)
	}

	query := fmt.Sprintf(`insert into users (%s) values
		($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)`, userColumns)

	_, err = s.dbase.DBExecute(query,
		user.ID.String(), user.Username, user.PasswordHash, user.Iron, user.XP, user.LastUpdated, row.techTree, nullableUUID(user.ShipID),
		user.TechCounts["pulse_laser"], user.TechCounts["auto_turret"], user.TechCounts["plasma_lance"],
		user.TechCounts["gauss_rifle"], user.TechCounts["photon_torpedo"], user.TechCounts["rocket_launcher"],
		user.TechCounts["ship_hull"], user.TechCounts["kinetic_armor"], user.TechCounts["energy_shield"], user.TechCounts["missile_jammer"],
		user.HullCurrent, user.ArmorCurrent, user.ShieldCurrent, user.DefenseLastRegen,
		user.InBattle, nullableUUID(user.CurrentBattleID), row.buildQueue, row.inventory,
	)
	if err != nil {
		return fmt.Errorf("inserting user %s: %w", user.ID, formatStorageError(err))
	}

	return nil
}

// UpdateUser :
// Implementation of the `Store` interface.
func (s *PGStore) UpdateUser(ctx context.Context, user model.User) error {
	row, err := marshalUser(user)
	if err != nil {
		return fmt.Errorf("marshalling user %s: %w", user.ID, err)
	}

	query := `update users set
		username=$2, password_hash=$3, iron=$4, xp=$5, last_updated=$6, tech_tree=$7, ship_id=$8,
		pulse_laser=$9, auto_turret=$10, plasma_lance=$11, gauss_rifle=$12, photon_torpedo=$13, rocket_launcher=$14,
		ship_hull=$15, kinetic_armor=$16, energy_shield=$17, missile_jammer=$18,
		hull_current=$19, armor_current=$20, shield_current=$21, defense_last_regen=$22,
		in_battle=$23, current_battle_id=$24, build_queue=$25, inventory=$26
		where id=$1`

	_, err = s.dbase.DBExecute(query,
		user.ID.String(), user.Username, user.PasswordHash, user.Iron, user.XP, user.LastUpdated, row.techTree, nullableUUID(user.ShipID),
		user.TechCounts["pulse_laser"], user.TechCounts["auto_turret"], user.TechCounts["plasma_lance"],
		user.TechCounts["gauss_rifle"], user.TechCounts["photon_torpedo"], user.TechCounts["rocket_launcher"],
		user.TechCounts["ship_hull"], user.TechCounts["kinetic_armor"], user.TechCounts["energy_shield"], user.TechCounts["missile_jammer"],
		user.HullCurrent, user.ArmorCurrent, user.ShieldCurrent, user.DefenseLastRegen,
		user.InBattle, nullableUUID(user.CurrentBattleID), row.buildQueue, row.inventory,
	)
	if err != nil {
		return fmt.Errorf("updating user %s: %w", user.ID, formatStorageError(err))
	}

	return nil
}

// GetAllSpaceObjects :
// Implementation of the `Store` interface. Joins `space_objects`
// with `users` so player-ship rows carry their owner's username
// and in-battle status.
func (s *PGStore) GetAllSpaceObjects(ctx context.Context) ([]model.SpaceObject, error) {
	query := `select o.id, o.type, o.x, o.y, o.speed, o.angle, o.last_position_update_ms, o.picture_id, u.username, u.in_battle
		from space_objects o left join users u on u.ship_id = o.id`

	rows, err := s.dbase.DBQuery(query)
	if err != nil {
		return nil, fmt.Errorf("fetching space objects: %w", formatStorageError(err))
	}
	defer rows.Close()

	out := make([]model.SpaceObject, 0)
	for rows.Next() {
		var o model.SpaceObject
		var username *string
		var inBattle *bool

		if err := rows.Scan(&o.ID, &o.Type, &o.X, &o.Y, &o.Speed, &o.Angle, &o.LastPositionUpdateMs, &o.PictureID, &username, &inBattle); err != nil {
			return nil, fmt.Errorf("scanning space object: %w", err)
		}

		if username != nil {
			o.Username = *username
		}
		if inBattle != nil {
			o.OwnerInBattle = *inBattle
		}

		out = append(out, o)
	}

	return out, nil
}

// InsertSpaceObject :
// Implementation of the `Store` interface.
func (s *PGStore) InsertSpaceObject(ctx context.Context, obj model.SpaceObject) (uuid.UUID, error) {
	if obj.ID == uuid.Nil {
		obj.ID = uuid.New()
	}

	query := `insert into space_objects (id, type, x, y, speed, angle, last_position_update_ms, picture_id)
		values ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err := s.dbase.DBExecute(query, obj.ID.String(), obj.Type, obj.X, obj.Y, obj.Speed, obj.Angle, obj.LastPositionUpdateMs, obj.PictureID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("inserting space object: %w", formatStorageError(err))
	}

	return obj.ID, nil
}

// UpdateSpaceObject :
// Implementation of the `Store` interface.
func (s *PGStore) UpdateSpaceObject(ctx context.Context, obj model.SpaceObject) error {
	query := `update space_objects set type=$2, x=$3, y=$4, speed=$5, angle=$6, last_position_update_ms=$7, picture_id=$8 where id=$1`

	_, err := s.dbase.DBExecute(query, obj.ID.String(), obj.Type, obj.X, obj.Y, obj.Speed, obj.Angle, obj.LastPositionUpdateMs, obj.PictureID)
	if err != nil {
		return fmt.Errorf("updating space object %s: %w", obj.ID, formatStorageError(err))
	}

	return nil
}

// DeleteSpaceObject :
// Implementation of the `Store` interface.
func (s *PGStore) DeleteSpaceObject(ctx context.Context, id uuid.UUID) error {
	_, err := s.dbase.DBExecute("delete from space_objects where id=$1", id.String())
	if err != nil {
		return fmt.Errorf("deleting space object %s: %w", id, formatStorageError(err))
	}

	return nil
}

const battleColumns = `id, attacker_id, attackee_id, battle_start_time, battle_end_time, winner_id, loser_id,
	attacker_weapon_cooldowns, attackee_weapon_cooldowns, attacker_start_stats, attackee_start_stats,
	attacker_end_stats, attackee_end_stats, battle_log, attacker_total_damage, attackee_total_damage`

func scanBattle(rows pgxRows) (model.Battle, error) {
	var b model.Battle
	var winnerID, loserID *uuid.UUID
	var attackerCooldowns, attackeeCooldowns []byte
	var attackerStart, attackeeStart []byte
	var attackerEnd, attackeeEnd []byte
	var log []byte

	err := rows.Scan(
		&b.ID, &b.AttackerID, &b.AttackeeID, &b.BattleStartTime, &b.BattleEndTime, &winnerID, &loserID,
		&attackerCooldowns, &attackeeCooldowns, &attackerStart, &attackeeStart,
		&attackerEnd, &attackeeEnd, &log, &b.AttackerTotalDamage, &b.AttackeeTotalDamage,
	)
	if err != nil {
		return model.Battle{}, err
	}

	b.WinnerID = winnerID
	b.LoserID = loserID

	cdA := make(map[string]int64)
	cdB := make(map[string]int64)
	if len(attackerCooldowns) > 0 {
		if err := json.Unmarshal(attackerCooldowns, &cdA); err != nil {
			return model.Battle{}, err
		}
	}
	if len(attackeeCooldowns) > 0 {
		if err := json.Unmarshal(attackeeCooldowns, &cdB); err != nil {
			return model.Battle{}, err
		}
	}
	b.AttackerWeaponCooldowns = model.CooldownTableFromMap(cdA)
	b.AttackeeWeaponCooldowns = model.CooldownTableFromMap(cdB)

	if err := json.Unmarshal(attackerStart, &b.AttackerStartStats); err != nil {
		return model.Battle{}, err
	}
	if err := json.Unmarshal(attackeeStart, &b.AttackeeStartStats); err != nil {
		return model.Battle{}, err
	}

	if len(attackerEnd) > 0 {
		var stats model.BattleStats
		if err := json.Unmarshal(attackerEnd, &stats); err != nil {
			return model.Battle{}, err
		}
		b.AttackerEndStats = &stats
	}
	if len(attackeeEnd) > 0 {
		var stats model.BattleStats
		if err := json.Unmarshal(attackeeEnd, &stats); err != nil {
			return model.Battle{}, err
		}
		b.AttackeeEndStats = &stats
	}

	if len(log) > 0 {
		if err := json.Unmarshal(log, &b.BattleLog); err != nil {
			return model.Battle{}, err
		}
	}

	return b, nil
}

// GetBattle :
// Implementation of the `Store` interface.
func (s *PGStore) GetBattle(ctx context.Context, id uuid.UUID) (model.Battle, error) {
	query := fmt.Sprintf("select %s from battles where id=$1", battleColumns)

	rows, err := s.dbase.DBQuery(query, id.String())
	if err != nil {
		return model.Battle{}, fmt.Errorf("fetching battle %s: %w", id, formatStorageError(err))
	}
	defer rows.Close()

	if !rows.Next() {
		return model.Battle{}, fmt.Errorf("battle %s: %w", id, model.ErrNotFound)
	}

	return scanBattle(rows)
}

// GetBattlesForUser :
// Implementation of the `Store` interface.
func (s *PGStore) GetBattlesForUser(ctx context.Context, userID uuid.UUID) ([]model.Battle, error) {
	query := fmt.Sprintf("select %s from battles where attacker_id=$1 or attackee_id=$1 order by battle_start_time", battleColumns)

	rows, err := s.dbase.DBQuery(query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("fetching battles for user %s: %w", userID, formatStorageError(err))
	}
	defer rows.Close()

	out := make([]model.Battle, 0)
	for rows.Next() {
		b, err := scanBattle(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning battle: %w", err)
		}
		out = append(out, b)
	}

	return out, nil
}

// InsertBattle :
// Implementation of the `Store` interface.
func (s *PGStore) InsertBattle(ctx context.Context, battle model.Battle) error {
	args, err := battleArgs(battle)
	if err != nil {
		return fmt.Errorf("marshalling battle %s: %w", battle.ID, err)
	}

	query := fmt.Sprintf(`insert into battles (%s) values
		($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`, battleColumns)

	if _, err := s.dbase.DBExecute(query, args...); err != nil {
		return fmt.Errorf("inserting battle %s: %w", battle.ID, formatStorageError(err))
	}

	return nil
}

// UpdateBattle :
// Implementation of the `Store` interface.
func (s *PGStore) UpdateBattle(ctx context.Context, battle model.Battle) error {
	args, err := battleArgs(battle)
	if err != nil {
		return fmt.Errorf("marshalling battle %s: %w", battle.ID, err)
	}

	query := `update battles set
		attacker_id=$2, attackee_id=$3, battle_start_time=$4, battle_end_time=$5, winner_id=$6, loser_id=$7,
		attacker_weapon_cooldowns=$8, attackee_weapon_cooldowns=$9, attacker_start_stats=$10, attackee_start_stats=$11,
		attacker_end_stats=$12, attackee_end_stats=$13, battle_log=$14, attacker_total_damage=$15, attackee_total_damage=$16
		where id=$1`

	if _, err := s.dbase.DBExecute(query, args...); err != nil {
		return fmt.Errorf("updating battle %s: %w", battle.ID, formatStorageError(err))
	}

	return nil
}

// battleArgs marshals a `model.Battle` into the positional
// argument list shared by `InsertBattle` and `UpdateBattle`.
func battleArgs(battle model.Battle) ([]interface{}, error) {
	attackerCooldowns, err := json.Marshal(battle.AttackerWeaponCooldowns.ToMap())
	if err != nil {
		return nil, err
	}
	attackeeCooldowns, err := json.Marshal(battle.AttackeeWeaponCooldowns.ToMap())
	if err != nil {
		return nil, err
	}
	attackerStart, err := json.Marshal(battle.AttackerStartStats)
	if err != nil {
		return nil, err
	}
	attackeeStart, err := json.Marshal(battle.AttackeeStartStats)
	if err != nil {
		return nil, err
	}

	var attackerEnd, attackeeEnd []byte
	if battle.AttackerEndStats != nil {
		attackerEnd, err = json.Marshal(battle.AttackerEndStats)
		if err != nil {
			return nil, err
		}
	}
	if battle.AttackeeEndStats != nil {
		attackeeEnd, err = json.Marshal(battle.AttackeeEndStats)
		if err != nil {
			return nil, err
		}
	}

	log, err := json.Marshal(battle.BattleLog)
	if err != nil {
		return nil, err
	}

	return []interface{}{
		battle.ID.String(), battle.AttackerID.String(), battle.AttackeeID.String(),
		battle.BattleStartTime, battle.BattleEndTime, nullableUUID(battle.WinnerID), nullableUUID(battle.LoserID),
		attackerCooldowns, attackeeCooldowns, attackerStart, attackeeStart,
		attackerEnd, attackeeEnd, log, battle.AttackerTotalDamage, battle.AttackeeTotalDamage,
	}, nil
}

// GetMessage :
// Implementation of the `Store` interface.
func (s *PGStore) GetMessage(ctx context.Context, id uuid.UUID) (model.Message, error) {
	query := "select id, recipient_id, message, created_at, is_read from messages where id=$1"

	rows, err := s.dbase.DBQuery(query, id.String())
	if err != nil {
		return model.Message{}, fmt.Errorf("fetching message %s: %w", id, formatStorageError(err))
	}
	defer rows.Close()

	if !rows.Next() {
		return model.Message{}, fmt.Errorf("message %s: %w", id, model.ErrNotFound)
	}

	var m model.Message
	if err := rows.Scan(&m.ID, &m.RecipientID, &m.Text, &m.CreatedAt, &m.IsRead); err != nil {
		return model.Message{}, err
	}

	return m, nil
}

// GetAllMessages :
// Implementation of the `Store` interface.
func (s *PGStore) GetAllMessages(ctx context.Context, recipientID uuid.UUID, limit int) ([]model.Message, error) {
	query := "select id, recipient_id, message, created_at, is_read from messages where recipient_id=$1 order by created_at desc"
	args := []interface{}{recipientID.String()}

	if limit > 0 {
		query += " limit $2"
		args = append(args, limit)
	}

	rows, err := s.dbase.DBQuery(query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching messages for %s: %w", recipientID, formatStorageError(err))
	}
	defer rows.Close()

	out := make([]model.Message, 0)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.RecipientID, &m.Text, &m.CreatedAt, &m.IsRead); err != nil {
			return nil, err
		}
		out = append(out, m)
	}

	return out, nil
}

// InsertMessage :
// Implementation of the `Store` interface.
func (s *PGStore) InsertMessage(ctx context.Context, msg model.Message) error {
	query := "insert into messages (id, recipient_id, message, created_at, is_read) values ($1,$2,$3,$4,$5)"

	_, err := s.dbase.DBExecute(query, msg.ID.String(), msg.RecipientID.String(), msg.Text, msg.CreatedAt, msg.IsRead)
	if err != nil {
		return fmt.Errorf("inserting message %s: %w", msg.ID, formatStorageError(err))
	}

	return nil
}

// UpdateMessage :
// Implementation of the `Store` interface.
func (s *PGStore) UpdateMessage(ctx context.Context, msg model.Message) error {
	query := "update messages set is_read=$2 where id=$1"

	_, err := s.dbase.DBExecute(query, msg.ID.String(), msg.IsRead)
	if err != nil {
		return fmt.Errorf("updating message %s: %w", msg.ID, formatStorageError(err))
	}

	return nil
}

// DeleteOldRead :
// Implementation of the `Store` interface.
func (s *PGStore) DeleteOldRead(ctx context.Context, cutoff int64) (int, error) {
	tag, err := s.dbase.DBExecute("delete from messages where is_read = true and created_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweeping old read messages: %w", formatStorageError(err))
	}

	return int(tag.RowsAffected()), nil
}

// nullableUUID converts an optional uuid pointer into a value
// pgx can bind as either NULL or a string.
func nullableUUID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return id.String()
}

// formatStorageError wraps a raw store error with
// `model.ErrStorageError` so callers can match on it uniformly
// regardless of which table failed.
func formatStorageError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%v: %w", err, model.ErrStorageError)
}

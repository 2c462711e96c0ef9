package embracedb

import (
	"fmt"
	"math/rand"
	"os"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRecoveryBasic persists a handful of keys and verifies they survive
// a restart.
func TestRecoveryBasic(t *testing.T) {
	db, path := setup(t)

	fruit := map[string]string{
		"apple":      "red",
		"banana":     "yellow",
		"cherry":     "red",
		"date":       "brown",
		"elderberry": "purple",
		"fig":        "green",
	}
	for k, v := range fruit {
		require.NoError(t, db.Put([]byte(k), []byte(v)))
	}
	require.NoError(t, db.FlushWAL())

	db2 := reopen(t, db, path)
	for k, v := range fruit {
		got, err := db2.Get([]byte(k))
		require.NoError(t, err, "missing %q after recovery", k)
		assert.Equal(t, v, string(got))
	}
}

// TestRecoveryReplaysUpdates checks that a PUT followed by UPDATEs
// recovers to the final value.
func TestRecoveryReplaysUpdates(t *testing.T) {
	db, path := setup(t)

	require.NoError(t, db.Put([]byte("k"), []byte("v1")))
	require.NoError(t, db.Update([]byte("k"), []byte("v2")))
	require.NoError(t, db.Update([]byte("k"), []byte("v3")))
	require.NoError(t, db.FlushWAL())

	db2 := reopen(t, db, path)
	v, err := db2.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v3"), v)
}

// TestRecoveryReplaysDeletes checks a put/delete/put sequence recovers
// to the final state.
func TestRecoveryReplaysDeletes(t *testing.T) {
	db, path := setup(t)

	require.NoError(t, db.Put([]byte("k"), []byte("a")))
	require.NoError(t, db.Put([]byte("k"), []byte("b")))
	require.NoError(t, db.Delete([]byte("k")))
	require.NoError(t, db.Put([]byte("k"), []byte("c")))
	require.NoError(t, db.FlushWAL())

	db2 := reopen(t, db, path)
	v, err := db2.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), v)
}

// TestRecoveryAcrossCheckpoint covers state split between a snapshot and
// the WAL tail.
func TestRecoveryAcrossCheckpoint(t *testing.T) {
	db, path := setup(t)

	for i := 0; i < 100; i++ {
		require.NoError(t, db.Put(fmt.Appendf(nil, "k%03d", i), fmt.Appendf(nil, "v%d", i)))
	}
	require.NoError(t, db.CreateCheckpoint())
	for i := 100; i < 150; i++ {
		require.NoError(t, db.Put(fmt.Appendf(nil, "k%03d", i), fmt.Appendf(nil, "v%d", i)))
	}
	require.NoError(t, db.FlushWAL())

	db2 := reopen(t, db, path)

	var keys []string
	db2.IterateAll(func(k, _ []byte) {
		keys = append(keys, string(k))
	})
	require.Len(t, keys, 150)
	assert.True(t, sort.StringsAreSorted(keys), "iteration must be in key order")
	for i := 0; i < 150; i++ {
		assert.Equal(t, fmt.Sprintf("k%03d", i), keys[i])
	}
}

// TestTruncatedWALIsCorruption verifies a torn tail surfaces as
// corruption on recovery, not silent data loss.
func TestTruncatedWALIsCorruption(t *testing.T) {
	db, path := setup(t)

	for i := 0; i < 10; i++ {
		require.NoError(t, db.Put(fmt.Appendf(nil, "key%d", i), []byte("value")))
	}
	require.NoError(t, db.FlushWAL())
	require.NoError(t, db.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-5))

	db2, err := Open(path)
	require.NoError(t, err)
	defer db2.Close()
	assert.ErrorIs(t, db2.RecoverFromWAL(), ErrCorruption)
}

// TestCorruptedSnapshotMagic verifies a damaged snapshot header fails
// recovery loudly.
func TestCorruptedSnapshotMagic(t *testing.T) {
	db, path := setup(t)

	for i := 0; i < 20; i++ {
		require.NoError(t, db.Put(fmt.Appendf(nil, "key%02d", i), []byte("value")))
	}
	require.NoError(t, db.CreateCheckpoint())
	require.NoError(t, db.Close())

	snapPath := path + ".snapshot"
	data, err := os.ReadFile(snapPath)
	require.NoError(t, err)
	data[0] ^= 0xFF
	require.NoError(t, os.WriteFile(snapPath, data, 0600))

	db2, err := Open(path)
	require.NoError(t, err)
	defer db2.Close()

	err = db2.RecoverFromWAL()
	assert.ErrorIs(t, err, ErrCorruption)
	assert.ErrorIs(t, err, ErrInvalidMagicNumber)
}

// TestRandomizedRecoveryEquivalence applies random operation sequences
// to the engine and a reference map, then checks the mapping survives
// recovery intact.
func TestRandomizedRecoveryEquivalence(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		t.Run(fmt.Sprintf("seed_%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))
			db, path := setup(t)
			ref := make(map[string]string)

			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("key_%02d", rng.Intn(100))
				switch rng.Intn(4) {
				case 0, 1:
					val := fmt.Sprintf("val_%d_%d", seed, i)
					require.NoError(t, db.Put([]byte(key), []byte(val)))
					ref[key] = val
				case 2:
					val := fmt.Sprintf("upd_%d_%d", seed, i)
					err := db.Update([]byte(key), []byte(val))
					if _, ok := ref[key]; ok {
						require.NoError(t, err)
						ref[key] = val
					} else {
						require.ErrorIs(t, err, ErrKeyNotFound)
					}
				case 3:
					err := db.Delete([]byte(key))
					if _, ok := ref[key]; ok {
						require.NoError(t, err)
						delete(ref, key)
					} else {
						require.ErrorIs(t, err, ErrKeyNotFound)
					}
				}
			}
			require.NoError(t, db.FlushWAL())

			db2 := reopen(t, db, path)
			assert.Equal(t, ref, dump(db2))
		})
	}
}

// TestRecoveryIdempotence runs recovery repeatedly over the same files
// and expects the same mapping every time.
func TestRecoveryIdempotence(t *testing.T) {
	db, path := setup(t)

	for i := 0; i < 50; i++ {
		require.NoError(t, db.Put(fmt.Appendf(nil, "k%02d", i), fmt.Appendf(nil, "v%d", i)))
	}
	require.NoError(t, db.CreateCheckpoint())
	for i := 0; i < 25; i++ {
		require.NoError(t, db.Delete(fmt.Appendf(nil, "k%02d", i)))
	}
	require.NoError(t, db.FlushWAL())
	require.NoError(t, db.Close())

	db2, err := Open(path)
	require.NoError(t, err)
	defer db2.Close()

	require.NoError(t, db2.RecoverFromWAL())
	first := dump(db2)
	require.Len(t, first, 25)

	for i := 0; i < 3; i++ {
		require.NoError(t, db2.RecoverFromWAL())
		assert.Equal(t, first, dump(db2))
	}
}

// TestCheckpointTransparency interleaves checkpoints into one of two
// identical workloads; the post-recovery mappings must match.
func TestCheckpointTransparency(t *testing.T) {
	apply := func(db *DB, checkpoints bool) {
		for i := 0; i < 120; i++ {
			key := fmt.Appendf(nil, "k%03d", i%40)
			switch i % 3 {
			case 0:
				require.NoError(t, db.Put(key, fmt.Appendf(nil, "v%d", i)))
			case 1:
				if err := db.Update(key, fmt.Appendf(nil, "u%d", i)); err != nil {
					require.ErrorIs(t, err, ErrKeyNotFound)
				}
			case 2:
				if err := db.Delete(key); err != nil {
					require.ErrorIs(t, err, ErrKeyNotFound)
				}
			}
			if checkpoints && i%37 == 0 {
				require.NoError(t, db.CreateCheckpoint())
			}
		}
		require.NoError(t, db.FlushWAL())
	}

	plain, plainPath := setup(t)
	apply(plain, false)
	plainRecovered := reopen(t, plain, plainPath)

	ckpt, ckptPath := setup(t)
	apply(ckpt, true)
	ckptRecovered := reopen(t, ckpt, ckptPath)

	assert.Equal(t, dump(plainRecovered), dump(ckptRecovered))
}

// TestAutoCheckpoint verifies the interval fires and recovery still
// reassembles the full mapping afterward.
func TestAutoCheckpoint(t *testing.T) {
	db, path := setup(t, WithCheckpointInterval(10))

	for i := 0; i < 25; i++ {
		require.NoError(t, db.Put(fmt.Appendf(nil, "k%02d", i), []byte("v")))
	}

	_, err := os.Stat(path + ".snapshot")
	require.NoError(t, err, "auto checkpoint should have published a snapshot")

	require.NoError(t, db.FlushWAL())
	db2 := reopen(t, db, path)
	assert.Len(t, dump(db2), 25)
}

// TestSetCheckpointInterval enables auto-checkpointing after open.
func TestSetCheckpointInterval(t *testing.T) {
	db, path := setup(t)
	db.SetCheckpointInterval(5)

	for i := 0; i < 5; i++ {
		require.NoError(t, db.Put(fmt.Appendf(nil, "k%d", i), []byte("v")))
	}
	_, err := os.Stat(path + ".snapshot")
	assert.NoError(t, err)
}

// TestCheckpointTruncatesWAL confirms the log restarts near-empty after
// a checkpoint.
func TestCheckpointTruncatesWAL(t *testing.T) {
	db, path := setup(t)

	for i := 0; i < 100; i++ {
		require.NoError(t, db.Put(fmt.Appendf(nil, "k%03d", i), []byte("some value payload")))
	}
	require.NoError(t, db.FlushWAL())

	before, err := os.Stat(path)
	require.NoError(t, err)
	require.NotZero(t, before.Size())

	require.NoError(t, db.CreateCheckpoint())
	require.NoError(t, db.FlushWAL())

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Less(t, after.Size(), before.Size(), "checkpoint must truncate the log")
}

// TestUpdateUpgradedToPutOnReplay reconstructs the legal state where a
// key's PUT was absorbed into a snapshot and only UPDATE records remain
// in the WAL tail after truncation.
func TestUpdateUpgradedToPutOnReplay(t *testing.T) {
	db, path := setup(t)

	require.NoError(t, db.Put([]byte("k"), []byte("v1")))
	require.NoError(t, db.CreateCheckpoint())
	require.NoError(t, db.Update([]byte("k"), []byte("v2")))
	require.NoError(t, db.FlushWAL())
	require.NoError(t, db.Close())

	// Drop the snapshot so replay sees the UPDATE with no preceding PUT.
	require.NoError(t, os.Remove(path+".snapshot"))

	db2, err := Open(path)
	require.NoError(t, err)
	defer db2.Close()
	require.NoError(t, db2.RecoverFromWAL())

	v, err := db2.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), v)
}

// TestDeleteOfAbsentKeyIgnoredOnReplay covers a DELETE whose target was
// never inserted into the snapshot-seeded tree.
func TestDeleteOfAbsentKeyIgnoredOnReplay(t *testing.T) {
	db, path := setup(t)

	require.NoError(t, db.Put([]byte("gone"), []byte("v")))
	require.NoError(t, db.CreateCheckpoint())
	require.NoError(t, db.Delete([]byte("gone")))
	require.NoError(t, db.Put([]byte("keep"), []byte("v")))
	require.NoError(t, db.FlushWAL())
	require.NoError(t, db.Close())

	// Drop the snapshot so replay meets the DELETE with "gone" never
	// inserted. Each recovery rebuilds the tree from the files, so both
	// runs hit the absent key, which must not fail recovery.
	require.NoError(t, os.Remove(path+".snapshot"))

	db2, err := Open(path)
	require.NoError(t, err)
	defer db2.Close()
	require.NoError(t, db2.RecoverFromWAL())
	require.NoError(t, db2.RecoverFromWAL())

	_, err = db2.Get([]byte("gone"))
	assert.ErrorIs(t, err, ErrKeyNotFound)
	_, err = db2.Get([]byte("keep"))
	assert.NoError(t, err)
}

// TestWriteAheadOrdering checks the durability contract: everything
// acknowledged before a flush is on disk and recoverable.
func TestWriteAheadOrdering(t *testing.T) {
	db, path := setup(t)

	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	require.NoError(t, db.FlushWAL())

	info, err := os.Stat(path)
	require.NoError(t, err)
	// type + keyLen + "k" + valueLen + "v" + crc
	assert.EqualValues(t, 15, info.Size())

	db2 := reopen(t, db, path)
	v, err := db2.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}

// TestRecoveryOnFreshPathsIsClean checks recovery with neither snapshot
// nor WAL present.
func TestRecoveryOnFreshPathsIsClean(t *testing.T) {
	db, _ := setup(t)
	require.NoError(t, db.RecoverFromWAL())
	assert.Empty(t, dump(db))
}

// TestRecoveryDiscardsPreRecoveryState ensures replay rebuilds from the
// files alone rather than layering onto live state.
func TestRecoveryDiscardsPreRecoveryState(t *testing.T) {
	db, path := setup(t)

	require.NoError(t, db.Put([]byte("durable"), []byte("v")))
	require.NoError(t, db.FlushWAL())
	require.NoError(t, db.Close())

	db2, err := Open(path)
	require.NoError(t, err)
	defer db2.Close()

	// Live state that never reached the log file must not survive.
	require.NoError(t, db2.Put([]byte("unflushed"), []byte("v")))
	require.NoError(t, db2.RecoverFromWAL())

	got := dump(db2)
	assert.Equal(t, map[string]string{"durable": "v"}, got)
}

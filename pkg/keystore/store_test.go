package keystore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/capiscio/wascap/pkg/keys"
	"github.com/capiscio/wascap/pkg/keystore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	dir := t.TempDir()

	store, err := keystore.NewFileStore(dir)
	require.NoError(t, err)

	issuer, err := keys.NewAccount()
	require.NoError(t, err)

	t.Run("Add and Get", func(t *testing.T) {
		require.NoError(t, store.Add("acme", issuer))

		info, err := os.Stat(filepath.Join(dir, "acme.jwk"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

		got, err := store.Get("acme")
		require.NoError(t, err)
		assert.Equal(t, issuer.PublicKey(), got.PublicKey())
		assert.Equal(t, keys.RoleAccount, got.Role())
		assert.True(t, got.CanSign())
	})

	t.Run("Add existing", func(t *testing.T) {
		other, err := keys.NewModule()
		require.NoError(t, err)
		err = store.Add("acme", other)
		assert.ErrorIs(t, err, keystore.ErrKeyExists)
	})

	t.Run("Get non-existent key", func(t *testing.T) {
		_, err := store.Get("non-existent")
		assert.ErrorIs(t, err, keystore.ErrKeyNotFound)
	})

	t.Run("List", func(t *testing.T) {
		mod, err := keys.NewModule()
		require.NoError(t, err)
		require.NoError(t, store.Add("echo", mod))

		entries, err := store.List()
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, keystore.Entry{Name: "acme", KeyID: issuer.PublicKey(), Role: keys.RoleAccount}, entries[0])
		assert.Equal(t, "echo", entries[1].Name)
		assert.Equal(t, keys.RoleModule, entries[1].Role)
	})

	t.Run("Remove", func(t *testing.T) {
		require.NoError(t, store.Remove("acme"))

		_, err := store.Get("acme")
		assert.ErrorIs(t, err, keystore.ErrKeyNotFound)

		_, err = os.Stat(filepath.Join(dir, "acme.jwk"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("Remove non-existent", func(t *testing.T) {
		err := store.Remove("non-existent")
		assert.ErrorIs(t, err, keystore.ErrKeyNotFound)
	})
}

func TestFileStore_VerificationOnlyKey(t *testing.T) {
	store, err := keystore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	kp, err := keys.NewAccount()
	require.NoError(t, err)
	pub, err := keys.FromPublicKey(keys.RoleOperator, kp.PublicKey())
	require.NoError(t, err)

	require.NoError(t, store.Add("upstream", pub))

	got, err := store.Get("upstream")
	require.NoError(t, err)
	assert.False(t, got.CanSign())
	assert.Equal(t, keys.RoleOperator, got.Role())
	assert.Equal(t, kp.PublicKey(), got.PublicKey())
}

func TestFileStore_InvalidName(t *testing.T) {
	store, err := keystore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	kp, err := keys.NewAccount()
	require.NoError(t, err)

	for _, name := range []string{"", "..", "index", "a/b", "did:key:z6Mk"} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, store.Add(name, kp), keystore.ErrInvalidName)
			_, err := store.Get(name)
			assert.ErrorIs(t, err, keystore.ErrInvalidName)
		})
	}
}

func TestFileStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	store, err := keystore.NewFileStore(dir)
	require.NoError(t, err)

	kp, err := keys.New(keys.RoleServer)
	require.NoError(t, err)
	require.NoError(t, store.Add("host", kp))

	reopened, err := keystore.NewFileStore(dir)
	require.NoError(t, err)
	got, err := reopened.Get("host")
	require.NoError(t, err)
	assert.Equal(t, kp.Seed(), got.Seed())
}

func TestFileStore_TamperedKeyFile(t *testing.T) {
	dir := t.TempDir()
	store, err := keystore.NewFileStore(dir)
	require.NoError(t, err)

	a, err := keys.NewAccount()
	require.NoError(t, err)
	b, err := keys.NewAccount()
	require.NoError(t, err)
	require.NoError(t, store.Add("a", a))
	require.NoError(t, store.Add("b", b))

	data, err := os.ReadFile(filepath.Join(dir, "b.jwk"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.jwk"), data, 0600))

	_, err = store.Get("a")
	assert.Error(t, err)
}

func TestDefaultDir(t *testing.T) {
	t.Setenv("WASCAP_KEYS_DIR", "/custom/path")
	assert.Equal(t, "/custom/path", keystore.DefaultDir())

	t.Setenv("WASCAP_KEYS_DIR", "")
	assert.Contains(t, keystore.DefaultDir(), filepath.Join(".wascap", "keys"))
}

package tree_test

import (
	"testing"

	"github.com/bcnelson/workspace-tree/internal/domain"
	"github.com/bcnelson/workspace-tree/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func id(d domain.DomType, resType, resID string) domain.Identity {
	return domain.Identity{DomType: d, ResType: resType, ResID: resID, Workspace: "requirement"}
}

func requirePanicsUnsupported(t *testing.T, op string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		err, ok := r.(*domain.UnsupportedOperationError)
		require.True(t, ok, "panic value %v", r)
		assert.Equal(t, op, err.Op)
	}()
	fn()
}

func TestResolver_ResourceURLIsDeterministic(t *testing.T) {
	r := tree.NewResolver(baseURL+"/", domain.DefaultTypeTable())

	for _, ident := range []domain.Identity{
		id(domain.DomRequirement, "requirements", "42"),
		id(domain.DomFolder, "requirement-folders", "7"),
		id(domain.DomTestSuite, "test-suites", "abc-def"),
	} {
		u := r.ResourceURL(ident)
		assert.Equal(t, u, r.ResourceURL(ident))
		assert.Equal(t, baseURL+"/"+ident.ResType+"/"+ident.ResID, u)
	}
}

func TestResolver_ContentURL(t *testing.T) {
	r := tree.NewResolver(baseURL, domain.DefaultTypeTable())

	tests := []struct {
		name  string
		ident domain.Identity
		want  string
	}{
		{"folder collapses", id(domain.DomFolder, "requirement-folders", "10"), baseURL + "/requirement-browser/folders/10/content"},
		{"drive collapses", id(domain.DomDrive, "requirement-libraries", "1"), baseURL + "/requirement-browser/drives/1/content"},
		{"other kinds keep resType", id(domain.DomRequirement, "requirements", "100"), baseURL + "/requirement-browser/requirements/100/content"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.ContentURL(tt.ident))
		})
	}

	assert.Equal(t, baseURL+"/campaign-browser/libraries", r.RootsURL("campaign"))
	assert.Equal(t, baseURL+"/requirement-browser", r.BrowserURL(id(domain.DomFolder, "requirement-folders", "10")))
}

func TestResolver_CopyURL(t *testing.T) {
	r := tree.NewResolver(baseURL, domain.DefaultTypeTable())

	assert.Equal(t, baseURL+"/requirement-browser/folders/10/content/new", r.CopyURL(id(domain.DomFolder, "requirement-folders", "10")))
	assert.Equal(t, baseURL+"/requirement-browser/drives/1/content/new", r.CopyURL(id(domain.DomDrive, "requirement-libraries", "1")))
	assert.Equal(t, baseURL+"/requirement-browser/requirements/5/content/new", r.CopyURL(id(domain.DomRequirement, "requirements", "5")))
	assert.Equal(t, baseURL+"/requirement-browser/campaigns/3/iterations/new", r.CopyURL(id(domain.DomCampaign, "campaigns", "3")))
	assert.Equal(t, baseURL+"/requirement-browser/iterations/4/test-suites/new", r.CopyURL(id(domain.DomIteration, "iterations", "4")))

	assert.False(t, r.SupportsCopy(domain.DomTestCase))
	requirePanicsUnsupported(t, "copy", func() { r.CopyURL(id(domain.DomTestCase, "test-cases", "9")) })
}

func TestResolver_MoveURL(t *testing.T) {
	r := tree.NewResolver(baseURL, domain.DefaultTypeTable())

	assert.Equal(t,
		baseURL+"/requirement-browser/folders/10/content/100,101/2",
		r.MoveURL(id(domain.DomFolder, "requirement-folders", "10"), []string{"100", "101"}, 2))
	assert.Equal(t,
		baseURL+"/requirement-browser/campaigns/3/content/8/-1",
		r.MoveURL(id(domain.DomCampaign, "campaigns", "3"), []string{"8"}, -1))

	assert.False(t, r.SupportsMove(domain.DomIteration))
	requirePanicsUnsupported(t, "move", func() { r.MoveURL(id(domain.DomIteration, "iterations", "4"), []string{"1"}, 0) })
}

func TestResolver_DeleteURL(t *testing.T) {
	r := tree.NewResolver(baseURL, domain.DefaultTypeTable())
	suite1 := id(domain.DomTestSuite, "test-suites", "7")
	suite2 := id(domain.DomTestSuite, "test-suites", "8")

	t.Run("test suites carry the flag only when set", func(t *testing.T) {
		assert.Equal(t,
			baseURL+"/requirement-browser/test-suites/7,8?remove_from_iter=true",
			r.DeleteURL(tree.DeleteOptions{RemoveFromIteration: true}, suite1, suite2))
		assert.Equal(t,
			baseURL+"/requirement-browser/test-suites/7,8",
			r.DeleteURL(tree.DeleteOptions{}, suite1, suite2))
	})

	t.Run("other kinds ignore the flag", func(t *testing.T) {
		assert.Equal(t,
			baseURL+"/requirement-browser/content/10",
			r.DeleteURL(tree.DeleteOptions{RemoveFromIteration: true}, id(domain.DomFolder, "requirement-folders", "10")))
		assert.Equal(t,
			baseURL+"/requirement-browser/iterations/4",
			r.DeleteURL(tree.DeleteOptions{}, id(domain.DomIteration, "iterations", "4")))
	})

	t.Run("libraries cannot be deleted", func(t *testing.T) {
		requirePanicsUnsupported(t, "delete", func() {
			r.DeleteURL(tree.DeleteOptions{}, id(domain.DomDrive, "requirement-libraries", "1"))
		})
	})

	t.Run("mixed kinds panic", func(t *testing.T) {
		assert.Panics(t, func() { r.DeleteURL(tree.DeleteOptions{}, suite1, id(domain.DomIteration, "iterations", "4")) })
		assert.Panics(t, func() { r.DeleteURL(tree.DeleteOptions{}) })
	})
}

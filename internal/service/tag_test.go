package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aliasbox/backend/internal/domain"
)

func tagNames(tags []domain.Tag) []string {
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.Name)
	}
	return names
}

func TestTagService_CRUD(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("创建标签", func(t *testing.T) {
		tag, err := env.tags.CreateTag(ctx, CreateTagInput{Name: "  Work  ", Description: "work accounts"})
		require.NoError(t, err)
		assert.Equal(t, "Work", tag.Name)
		assert.Equal(t, DefaultTagColor, tag.Color)
		assert.True(t, tag.IsActive)
	})

	t.Run("名称区分大小写", func(t *testing.T) {
		_, err := env.tags.CreateTag(ctx, CreateTagInput{Name: "work"})
		assert.NoError(t, err)
		_, err = env.tags.CreateTag(ctx, CreateTagInput{Name: "Work"})
		assert.True(t, domain.IsConflict(err))
	})

	t.Run("非法名称和颜色", func(t *testing.T) {
		_, err := env.tags.CreateTag(ctx, CreateTagInput{Name: "a;b"})
		assert.True(t, domain.IsValidation(err))
		_, err = env.tags.CreateTag(ctx, CreateTagInput{Name: "   "})
		assert.True(t, domain.IsValidation(err))
		_, err = env.tags.CreateTag(ctx, CreateTagInput{Name: "colored", Color: "red"})
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("更新和停用", func(t *testing.T) {
		tag := env.createTag(t, "temp")
		color := "#FF0000"
		updated, err := env.tags.UpdateTag(ctx, tag.ID, UpdateTagInput{Color: &color})
		require.NoError(t, err)
		assert.Equal(t, color, updated.Color)

		require.NoError(t, env.tags.DeleteTag(ctx, tag.ID))
		active, err := env.tags.ListTags(ctx, false)
		require.NoError(t, err)
		assert.NotContains(t, tagNames(active), "temp")

		all, err := env.tags.ListTags(ctx, true)
		require.NoError(t, err)
		assert.Contains(t, tagNames(all), "temp")
	})

	t.Run("系统标签不可删除", func(t *testing.T) {
		tag, err := env.tags.CreateTag(ctx, CreateTagInput{Name: "system", IsSystem: true})
		require.NoError(t, err)

		assert.True(t, domain.IsValidation(env.tags.DeleteTag(ctx, tag.ID)))
		assert.True(t, domain.IsValidation(env.tags.HardDeleteTag(ctx, tag.ID, false)))
		require.NoError(t, env.tags.HardDeleteTag(ctx, tag.ID, true))

		_, err = env.tags.GetTag(ctx, tag.ID)
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestTagService_Associations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	email := env.createEmail(t, "assoc@example.com")
	a := env.createTag(t, "a")
	b := env.createTag(t, "b")
	c := env.createTag(t, "c")

	t.Run("添加幂等", func(t *testing.T) {
		added, err := env.tags.AddTag(ctx, email.ID, a.ID)
		require.NoError(t, err)
		assert.True(t, added)

		added, err = env.tags.AddTag(ctx, email.ID, a.ID)
		require.NoError(t, err)
		assert.False(t, added, "重复添加不报错")
	})

	t.Run("移除不存在的关联", func(t *testing.T) {
		removed, err := env.tags.RemoveTag(ctx, email.ID, b.ID)
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("引用不存在", func(t *testing.T) {
		_, err := env.tags.AddTag(ctx, 9999, a.ID)
		assert.True(t, domain.IsNotFound(err))
		_, err = env.tags.AddTag(ctx, email.ID, 9999)
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("整体替换", func(t *testing.T) {
		tags, err := env.tags.ReplaceTags(ctx, email.ID, []int64{b.ID, c.ID, c.ID})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"b", "c"}, tagNames(tags))

		tags, err = env.tags.ReplaceTags(ctx, email.ID, nil)
		require.NoError(t, err)
		assert.Empty(t, tags)
	})

	t.Run("逐个添加部分失败", func(t *testing.T) {
		result, err := env.tags.BatchAddTags(ctx, email.ID, []int64{a.ID, 9999, b.ID})
		require.NoError(t, err)
		assert.Equal(t, 3, result.Total)
		assert.Equal(t, 2, result.Success)
		assert.Equal(t, 1, result.Failed)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "tag 9999")

		result, err = env.tags.BatchRemoveTags(ctx, email.ID, []int64{a.ID, b.ID})
		require.NoError(t, err)
		assert.Equal(t, 2, result.Success)

		tags, err := env.tags.GetEmailTags(ctx, email.ID)
		require.NoError(t, err)
		assert.Empty(t, tags)
	})

	t.Run("按模式修改", func(t *testing.T) {
		require.NoError(t, env.tags.ApplyTags(ctx, email.ID, []int64{a.ID, b.ID}, domain.TagModeAdd))
		require.NoError(t, env.tags.ApplyTags(ctx, email.ID, []int64{a.ID}, domain.TagModeRemove))
		tags, err := env.tags.GetEmailTags(ctx, email.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, tagNames(tags))

		assert.True(t, domain.IsValidation(env.tags.ApplyTags(ctx, email.ID, nil, "toggle")))
	})
}

func TestTagService_EnsureTags(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	existing := env.createTag(t, "existing")

	tags, err := env.tags.EnsureTags(ctx, []string{" new ", "existing", "new", ""})
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "new", tags[0].Name)
	assert.Equal(t, existing.ID, tags[1].ID)

	_, err = env.tags.EnsureTags(ctx, []string{"ok", "bad;name"})
	assert.True(t, domain.IsValidation(err))
	_, err = env.tags.GetTagByName(ctx, "ok")
	assert.True(t, domain.IsNotFound(err), "失败时整体回滚")
}

func TestTagService_MergeTags(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	e1 := env.createEmail(t, "m1@example.com", "old")
	env.createEmail(t, "m2@example.com", "old", "new")
	env.createEmail(t, "m3@example.com", "new")
	oldTag, err := env.tags.GetTagByName(ctx, "old")
	require.NoError(t, err)
	newTag, err := env.tags.GetTagByName(ctx, "new")
	require.NoError(t, err)

	t.Run("合并到自身", func(t *testing.T) {
		_, err := env.tags.MergeTags(ctx, MergeTagsInput{SourceID: oldTag.ID, TargetID: oldTag.ID})
		assert.True(t, domain.IsConflict(err))
	})

	t.Run("目标不存在", func(t *testing.T) {
		_, err := env.tags.MergeTags(ctx, MergeTagsInput{SourceID: oldTag.ID, TargetID: 9999})
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("移动和跳过", func(t *testing.T) {
		result, err := env.tags.MergeTags(ctx, MergeTagsInput{SourceID: oldTag.ID, TargetID: newTag.ID, DeleteSource: true})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Moved)
		assert.Equal(t, 1, result.Skipped, "目标上已有的关联被跳过")
		assert.True(t, result.SourceDeleted)

		_, err = env.tags.GetTag(ctx, oldTag.ID)
		assert.True(t, domain.IsNotFound(err))

		target, err := env.tags.GetTag(ctx, newTag.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, target.UsageCount)

		got, err := env.emails.GetByID(ctx, e1.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"new"}, got.Tags)
	})

	t.Run("系统源标签需要 force", func(t *testing.T) {
		sys, err := env.tags.CreateTag(ctx, CreateTagInput{Name: "sys", IsSystem: true})
		require.NoError(t, err)

		_, err = env.tags.MergeTags(ctx, MergeTagsInput{SourceID: sys.ID, TargetID: newTag.ID, DeleteSource: true})
		assert.True(t, domain.IsValidation(err))

		result, err := env.tags.MergeTags(ctx, MergeTagsInput{SourceID: sys.ID, TargetID: newTag.ID})
		require.NoError(t, err)
		assert.False(t, result.SourceDeleted, "不删除源标签时允许合并系统标签")

		result, err = env.tags.MergeTags(ctx, MergeTagsInput{SourceID: sys.ID, TargetID: newTag.ID, DeleteSource: true, Force: true})
		require.NoError(t, err)
		assert.True(t, result.SourceDeleted)
	})
}

func TestTagService_UsageDetails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.createEmail(t, "u1@example.com", "usage")
	e2 := env.createEmail(t, "u2@example.com", "usage")
	e3 := env.createEmail(t, "u3@example.com", "usage")

	archived := domain.EmailStatusArchived
	_, err := env.emails.Update(ctx, e2.ID, UpdateEmailInput{Status: &archived})
	require.NoError(t, err)
	require.NoError(t, env.emails.SoftDelete(ctx, e3.ID))

	tag, err := env.tags.GetTagByName(ctx, "usage")
	require.NoError(t, err)
	assert.Equal(t, 2, tag.UsageCount, "只统计有效记录")

	usage, err := env.tags.UsageDetails(ctx, tag.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, usage.Total)
	assert.Equal(t, 1, usage.Active)
	assert.Equal(t, 1, usage.Archived)
	assert.Equal(t, 1, usage.Deleted)
}

func TestTagService_ReplaceTagsConcurrentRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	email := env.createEmail(t, "swap@example.com")
	a, b := env.createTag(t, "a"), env.createTag(t, "b")
	c, d, e := env.createTag(t, "c"), env.createTag(t, "d"), env.createTag(t, "e")
	oldSet := []int64{a.ID, b.ID}
	newSet := []int64{c.ID, d.ID, e.ID}
	_, err := env.tags.ReplaceTags(ctx, email.ID, oldSet)
	require.NoError(t, err)

	snapshot := func(tags []domain.Tag) string {
		names := tagNames(tags)
		sort.Strings(names)
		return strings.Join(names, ",")
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		seen     = map[string]int{}
		readErrs []error
		stop     = make(chan struct{})
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			tags, err := env.tags.GetEmailTags(ctx, email.ID)
			mu.Lock()
			if err != nil {
				readErrs = append(readErrs, err)
			} else {
				seen[snapshot(tags)]++
			}
			mu.Unlock()
		}
	}()

	for i := 0; i < 50; i++ {
		set := newSet
		if i%2 == 1 {
			set = oldSet
		}
		if _, err := env.tags.ReplaceTags(ctx, email.ID, set); !assert.NoError(t, err) {
			break
		}
	}
	close(stop)
	wg.Wait()

	assert.Empty(t, readErrs)
	for got := range seen {
		assert.Contains(t, []string{"a,b", "c,d,e"}, got, "读到了替换到一半的标签集合")
	}
}

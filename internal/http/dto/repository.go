package dto

type ListRepositoriesQuery struct {
	Page    int `form:"page,default=1"`
	PerPage int `form:"per_page"`
}

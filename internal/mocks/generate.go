package mocks

//go:generate mockery --name RecordWriter --srcpkg github.com/trajstore-lab/trajstore/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
//go:generate mockery --name RunStore --srcpkg github.com/trajstore-lab/trajstore/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter

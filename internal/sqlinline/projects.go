package sqlinline

const QInsertProject = `--sql 6121aecb-df84-48f7-988c-690e30fb2066
insert into charity_projects(name, description, full_amount, invested_amount, fully_invested, create_date)
values ($1::text, $2::text, $3::bigint, 0, false, $4::timestamptz)
returning id;
`

// QOpenProjectsForUpdate locks every open project row until the surrounding
// transaction ends.
const QOpenProjectsForUpdate = `--sql c00358d0-82a7-4b8d-bde6-30d9f7907568
select id, full_amount, invested_amount, fully_invested, create_date, close_date
from charity_projects
where not fully_invested
order by create_date, id
for update;
`

const QOpenProjects = `--sql daf77cf2-dc59-43aa-9fbf-d45b280fc902
select id, full_amount, invested_amount, fully_invested, create_date, close_date
from charity_projects
where not fully_invested
order by create_date, id;
`

const QUpdateProjectInvestment = `--sql a04537d9-f245-450d-aa6e-541ffc0965f4
update charity_projects
set invested_amount = $2::bigint, fully_invested = $3::boolean, close_date = $4::timestamptz
where id = $1::bigint;
`

const QSelectProjectForUpdate = `--sql 71effddf-bee7-4a60-90e9-325e71378cb7
select id, name, description, full_amount, invested_amount, fully_invested, create_date, close_date
from charity_projects
where id = $1::bigint
for update;
`

const QSelectProjectIDByName = `--sql 97189685-96eb-4545-8144-414d67f68211
select id
from charity_projects
where name = $1::text;
`

const QUpdateProject = `--sql 5dc5b978-f653-4498-8a85-0f29b836e9da
update charity_projects
set name = $2::text, description = $3::text, full_amount = $4::bigint,
    invested_amount = $5::bigint, fully_invested = $6::boolean, close_date = $7::timestamptz
where id = $1::bigint;
`

const QDeleteProject = `--sql c8821b75-50ad-494c-97b3-711020245baa
delete from charity_projects
where id = $1::bigint;
`

const QListProjects = `--sql 1cdedab0-2513-4b59-9151-1bba4bada4c4
select id, name, description, full_amount, invested_amount, fully_invested, create_date, close_date
from charity_projects
order by create_date, id;
`
